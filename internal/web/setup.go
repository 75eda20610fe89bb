package web

import (
	"net/http"
	"strings"

	"github.com/wolfman30/appointment-insights/pkg/logging"
)

// SetupHandler answers every route with the missing API key instructions.
// Static assets are still served so the page is styled.
func SetupHandler(logger *logging.Logger) (http.Handler, error) {
	if logger == nil {
		logger = logging.Default()
	}
	p, err := parsePages()
	if err != nil {
		return nil, err
	}
	h := &Handler{logger: logger, pages: p}
	static := http.StripPrefix("/static/", http.FileServer(http.FS(StaticFS())))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/static/") {
			static.ServeHTTP(w, r)
			return
		}
		h.render(w, p.setup, "setup", http.StatusServiceUnavailable, nil)
	}), nil
}
