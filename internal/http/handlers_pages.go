package httpx

import (
	"fmt"
	"net/http"
)

// Page handlers render minimal shells; real content comes from the product
// API once the client hydrates. What matters here is which guard wraps them.

func pageHandler(title string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if IsPartialRender(r) {
			fmt.Fprintf(w, `<main id="content" data-page=%q></main>`, title)
			return
		}
		fmt.Fprintf(w, `<!DOCTYPE html><html><head><title>%s · CareAssist</title></head>`+
			`<body><main id="content" data-page=%q></main></body></html>`, title, title)
	})
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
