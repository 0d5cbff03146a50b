package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pitabwire/mercura/internal/metadata"
	"github.com/pitabwire/mercura/model"
)

func handleGetForm(forms *metadata.FormProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rctx := model.MustRequestContext(r.Context())
		formID := chi.URLParam(r, "formID")

		desc, err := forms.GetForm(r.Context(), rctx, formID)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, desc)
	}
}
