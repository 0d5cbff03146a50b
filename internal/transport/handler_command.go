package transport

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pitabwire/mercura/internal/command"
	"github.com/pitabwire/mercura/model"
)

func handleSubmitForm(executor *command.Executor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rctx := model.MustRequestContext(r.Context())
		formID := chi.URLParam(r, "formID")

		var input command.Input
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			WriteError(w, model.NewBadRequestError("invalid JSON body"))
			return
		}
		input.IdempotencyKey = r.Header.Get("X-Idempotency-Key")

		resp, err := executor.Execute(r.Context(), rctx, formID, input)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, resp)
	}
}
