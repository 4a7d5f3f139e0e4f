package api

import "net/http"

func Router(h *Handler, allowedOrigin string) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", h.Health)

	mux.HandleFunc("POST /api/send-now", h.SendNow)
	mux.HandleFunc("POST /api/schedule", h.Schedule)
	mux.HandleFunc("DELETE /api/cancel/{id}", h.Cancel)
	mux.HandleFunc("GET /api/messages", h.Messages)
	mux.HandleFunc("GET /api/history", h.History)

	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("fcmcontrol"))
	})

	return cors(allowedOrigin, mux)
}

// cors answers preflight requests and stamps the browser frontend's
// origin on every response.
func cors(origin string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
