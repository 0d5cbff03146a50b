package transport

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pitabwire/mercura/internal/wizard"
	"github.com/pitabwire/mercura/model"
)

func handleWizardStart(engine *wizard.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rctx := model.MustRequestContext(r.Context())
		formID := chi.URLParam(r, "formID")

		state, err := engine.Start(r.Context(), rctx, formID)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, state)
	}
}

func handleWizardGet(engine *wizard.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rctx := model.MustRequestContext(r.Context())
		sessionID := chi.URLParam(r, "sessionID")

		state, err := engine.Get(r.Context(), rctx, sessionID)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, state)
	}
}

func handleWizardAdvance(engine *wizard.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rctx := model.MustRequestContext(r.Context())
		sessionID := chi.URLParam(r, "sessionID")

		var event model.WizardEvent
		if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
			WriteError(w, model.NewBadRequestError("invalid JSON body"))
			return
		}

		state, err := engine.Advance(r.Context(), rctx, sessionID, event)
		if err != nil {
			// Validation failures on a step still carry the session state so
			// the client can re-render the current step with its values.
			if ee, ok := err.(*model.ErrorEnvelope); ok && ee.Code == model.ErrValidationError && state.Session != nil {
				WriteJSON(w, http.StatusUnprocessableEntity, advanceFailure{State: state, Error: ee})
				return
			}
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, state)
	}
}

// advanceFailure pairs the surviving session state with the validation
// errors that blocked the transition.
type advanceFailure struct {
	State model.WizardStateResponse `json:"state"`
	Error *model.ErrorEnvelope      `json:"error"`
}
