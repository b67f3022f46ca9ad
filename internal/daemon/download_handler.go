package daemon

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"orthodeck/internal/logging"
)

const pptxContentType = "application/vnd.openxmlformats-officedocument.presentationml.presentation"

// handleDownload serves a generated report by its validated base name.
// Names are checked before any filesystem access so traversal attempts
// never touch the outputs directory.
func (s *apiServer) handleDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	raw := strings.TrimPrefix(r.URL.EscapedPath(), "/api/download/")
	name, err := url.PathUnescape(raw)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid artifact name")
		return
	}
	if err := s.daemon.artifacts.ValidateArtifactName(name); err != nil {
		s.writeServiceError(w, err)
		return
	}

	path, err := s.daemon.artifacts.ResolveArtifact(name)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	f, err := os.Open(path)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to open artifact")
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to stat artifact")
		return
	}

	w.Header().Set("Content-Type", pptxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeContent(w, r, name, info.ModTime(), f)
	s.log().Info("artifact downloaded", logging.String("artifact", name))
}
