package billing

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/dmitrymomot/journalkit/handler"
	"github.com/dmitrymomot/journalkit/pkg/auth"
	"github.com/dmitrymomot/journalkit/pkg/binder"
	"github.com/dmitrymomot/journalkit/pkg/entitlement"
	"github.com/dmitrymomot/journalkit/pkg/logger"
	"github.com/dmitrymomot/journalkit/pkg/subscription"
)

type webhookRequest struct {
	Provider string `path:"provider"`
	Payload  []byte
	Header   http.Header
}

type webhookResponse struct {
	Received bool `json:"received"`
}

type verifySessionRequest struct {
	Provider  string `json:"provider"`
	SessionID string `json:"sessionId"`
}

// Requirement describes what unlocks a capability.
type Requirement struct {
	Capability entitlement.Capability `json:"capability"`
	Plan       entitlement.Plan       `json:"requiredPlan"`
	Message    string                 `json:"upgradeMessage"`
}

var bindPath = binder.Path(binder.ChiParam)

func (m *Module) bindWebhook(r *http.Request, v any) error {
	if err := bindPath(r, v); err != nil {
		return err
	}
	req := v.(*webhookRequest)

	body, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, m.maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errBodyTooLarge
		}
		return errors.Join(subscription.ErrMalformedPayload, err)
	}
	req.Payload = body
	req.Header = r.Header
	return nil
}

func (m *Module) bindVerifySession(r *http.Request, v any) error {
	if err := binder.JSON()(r, v); err != nil {
		return err
	}
	req := v.(*verifySessionRequest)
	verr := handler.NewValidationError()
	if strings.TrimSpace(req.Provider) == "" {
		verr.Add("provider", "is required")
	}
	if strings.TrimSpace(req.SessionID) == "" {
		verr.Add("sessionId", "is required")
	}
	return verr.Err()
}

// webhook acknowledges every processed, ignored or duplicate event with 200
// so providers stop retrying; failures map to 4xx/5xx.
func (m *Module) webhook(ctx handler.Context, req webhookRequest) handler.Response {
	provider := subscription.ProviderName(strings.ToLower(req.Provider))
	res, err := m.svc.HandleWebhook(ctx, provider, req.Payload, req.Header)
	if err != nil {
		return handler.Fail(err)
	}
	m.log.DebugContext(ctx, "webhook acknowledged",
		logger.Provider(string(provider)),
		logger.EventID(res.EventID),
		logger.Outcome(string(res.Outcome)),
	)
	return handler.JSON(webhookResponse{Received: true})
}

func (m *Module) status(ctx handler.Context, _ struct{}) handler.Response {
	userID, err := currentUser(ctx)
	if err != nil {
		return handler.Fail(err)
	}
	view, err := m.svc.CheckStatus(ctx, userID)
	if err != nil {
		return handler.Fail(err)
	}
	return handler.JSON(view)
}

func (m *Module) features(ctx handler.Context, _ struct{}) handler.Response {
	userID, err := currentUser(ctx)
	if err != nil {
		return handler.Fail(err)
	}
	access, err := m.svc.Access(ctx, userID)
	if err != nil {
		return handler.Fail(err)
	}
	return handler.JSON(access)
}

func (m *Module) startTrial(ctx handler.Context, _ struct{}) handler.Response {
	userID, err := currentUser(ctx)
	if err != nil {
		return handler.Fail(err)
	}
	if _, err := m.svc.StartTrial(ctx, userID, m.now()); err != nil {
		return handler.Fail(err)
	}
	view, err := m.svc.CheckStatus(ctx, userID)
	if err != nil {
		return handler.Fail(err)
	}
	return handler.JSON(view, handler.WithJSONStatus(http.StatusCreated))
}

func (m *Module) verifySession(ctx handler.Context, req verifySessionRequest) handler.Response {
	userID, err := currentUser(ctx)
	if err != nil {
		return handler.Fail(err)
	}
	provider := subscription.ProviderName(strings.ToLower(strings.TrimSpace(req.Provider)))
	view, err := m.svc.VerifySession(ctx, userID, provider, strings.TrimSpace(req.SessionID))
	if err != nil {
		return handler.Fail(fmt.Errorf("verify %s session: %w", provider, err))
	}
	return handler.JSON(view)
}

func (m *Module) requirements(_ handler.Context, _ struct{}) handler.Response {
	caps := entitlement.Capabilities()
	out := make([]Requirement, 0, len(caps))
	for _, c := range caps {
		out = append(out, Requirement{
			Capability: c,
			Plan:       entitlement.RequiredPlan(c),
			Message:    entitlement.UpgradeMessage(c),
		})
	}
	return handler.JSON(out)
}

func (m *Module) signOut(ctx handler.Context, _ struct{}) handler.Response {
	if err := m.authn.SignOut(ctx.ResponseWriter(), ctx.Request()); err != nil {
		return handler.Fail(err)
	}
	return handler.Empty()
}

func currentUser(ctx handler.Context) (uuid.UUID, error) {
	id, ok := auth.UserFromContext(ctx)
	if !ok {
		return id, auth.ErrUnauthenticated
	}
	return id, nil
}
