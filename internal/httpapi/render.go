package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/finaccosolutions/vbastudio/internal/render"
)

const workbookContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	var req render.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	data, err := render.Render(req)
	if err != nil {
		var verr *render.ValidationError
		if errors.As(err, &verr) {
			s.collector.RecordRender(string(req.Operation), "rejected")
			writeError(w, http.StatusBadRequest, verr.Kind, verr.Error())
			return
		}
		s.collector.RecordRender(string(req.Operation), "error")
		s.internalError(w, "render", err)
		return
	}

	s.collector.RecordRender(string(req.Operation), "ok")
	w.Header().Set("Content-Type", workbookContentType)
	w.Header().Set("Content-Disposition", `attachment; filename=excel_template.xlsx`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
