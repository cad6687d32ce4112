package pktaggroups

import (
	"context"
	"fmt"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	"github.com/pushkit/go-client-sdk/internal"
)

// Registrar uploads pending mutations.
type Registrar struct {
	history    *MutationHistory
	client     UpdateAPIClient
	identifier func(Type) string
	loggers    ldlog.Loggers
	now        func() time.Time
}

// NewRegistrar creates a Registrar. The identifier function returns the channel ID or named user ID
// for a type, or "" if there is none yet; pending mutations of that type then stay queued.
func NewRegistrar(history *MutationHistory, client UpdateAPIClient, identifier func(Type) string, loggers ldlog.Loggers) *Registrar {
	return &Registrar{history: history, client: client, identifier: identifier, loggers: loggers, now: time.Now}
}

// History returns the mutation history the registrar uploads from.
func (r *Registrar) History() *MutationHistory {
	return r.history
}

// Upload sends every pending mutation. A mutation the server accepts moves to the sent list; one
// it rejects permanently is dropped. Upload stops at the first recoverable failure and returns its
// error, leaving that mutation queued.
func (r *Registrar) Upload(ctx context.Context) error {
	for _, t := range AllTypes {
		id := r.identifier(t)
		if id == "" {
			continue
		}
		for {
			r.history.CollapsePendingMutations(t)
			m, ok := r.history.PeekPendingMutation(t)
			if !ok {
				break
			}
			status, err := r.client.UpdateTags(ctx, t, id, m)
			if err == nil {
				r.history.popPendingMutationIfEqual(t, m)
				r.history.AddSentMutation(m, r.now())
				r.loggers.Debugf("Uploaded %s tag group mutation", t)
				continue
			}
			if status == 0 {
				return fmt.Errorf("uploading %s tag groups: %w", t, err)
			}
			if internal.CheckIfErrorIsRecoverableAndLog(r.loggers, internal.HTTPErrorDescription(status),
				fmt.Sprintf("uploading %s tag groups", t), status, "will retry") {
				return fmt.Errorf("uploading %s tag groups: %w", t, err)
			}
			r.history.popPendingMutationIfEqual(t, m)
		}
	}
	return nil
}
