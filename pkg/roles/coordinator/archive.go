package coordinator

import (
	"go.uber.org/zap"

	"github.com/gridlet/gridlet/pkg/actor"
	"github.com/gridlet/gridlet/pkg/roles"
)

// Archive is the coordinator's companion actor: it stores completed job
// results so they stay fetchable independent of the coordinator's fate.
type Archive struct {
	log     *zap.Logger
	results map[string]roles.JobResult
}

// NewArchive builds an empty archive.
func NewArchive(log *zap.Logger) *Archive {
	if log == nil {
		log = zap.NewNop()
	}
	return &Archive{log: log, results: make(map[string]roles.JobResult)}
}

func (a *Archive) Receive(ctx *actor.Context) {
	switch msg := ctx.Message().(type) {
	case actor.Started:
	case roles.ArchiveJob:
		a.results[msg.Result.JobID] = msg.Result
		a.log.Debug("job archived", zap.String("job", msg.Result.JobID))
	case roles.FetchJob:
		result, found := a.results[msg.JobID]
		ctx.Respond(roles.ArchivedJob{Result: result, Found: found})
	default:
		a.log.Debug("archive ignoring message", zap.Any("message", msg))
	}
}
