package httpserver

import "net/http"

// Routes groups HTTP handlers.
type Routes struct {
	Health        http.HandlerFunc
	Balance       http.HandlerFunc
	TopUp         http.HandlerFunc
	Adjust        http.HandlerFunc
	Transactions  http.HandlerFunc
	Models        http.HandlerFunc
	SendMessage   http.HandlerFunc
	Predictions   http.HandlerFunc
	PredictionGet http.HandlerFunc
}

// NewRouter registers service endpoints.
func NewRouter(routes Routes) http.Handler {
	mux := http.NewServeMux()
	if routes.Health != nil {
		mux.Handle("/health", method(http.MethodGet, routes.Health))
	}
	if routes.Balance != nil {
		mux.Handle("/api/v1/balance", method(http.MethodGet, routes.Balance))
	}
	if routes.TopUp != nil {
		mux.Handle("/api/v1/balance/topup", method(http.MethodPost, routes.TopUp))
	}
	if routes.Adjust != nil {
		mux.Handle("/api/v1/balance/adjust", method(http.MethodPost, routes.Adjust))
	}
	if routes.Transactions != nil {
		mux.Handle("/api/v1/transactions", method(http.MethodGet, routes.Transactions))
	}
	if routes.Models != nil {
		mux.Handle("/api/v1/models", method(http.MethodGet, routes.Models))
	}
	if routes.SendMessage != nil {
		mux.Handle("/api/v1/chat/message", method(http.MethodPost, routes.SendMessage))
	}
	if routes.Predictions != nil {
		mux.Handle("/api/v1/predictions", method(http.MethodGet, routes.Predictions))
	}
	if routes.PredictionGet != nil {
		mux.Handle("/api/v1/predictions/", method(http.MethodGet, routes.PredictionGet))
	}
	return mux
}

func method(expected string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != expected {
			w.Header().Set("Allow", expected)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		handler(w, r)
	}
}
