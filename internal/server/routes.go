package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"github.com/scythe504/winenight-backend/internal"
	"github.com/skip2/go-qrcode"
)

const qrSize = 320

func (s *Server) RegisterRoutes() http.Handler {
	r := mux.NewRouter()

	r.Use(s.corsMiddleware)

	r.HandleFunc("/healthz", s.HealthHandler).Methods(http.MethodGet)
	r.HandleFunc("/games", s.CreateGameHandler).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/rooms/{code}", s.RoomSummaryHandler).Methods(http.MethodGet)
	r.HandleFunc("/rooms/{code}/qr", s.RoomQRHandler).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.manager.HandleWebSocket(s.upgrader))

	return r
}

// CORS middleware
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	allowed := s.cfg.Origins()
	wildcard := slices.Contains(allowed, "*")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The upgrader checks origins for websocket requests.
		if strings.ToLower(r.Header.Get("Upgrade")) == "websocket" {
			next.ServeHTTP(w, r)
			return
		}

		origin := r.Header.Get("Origin")
		if origin != "" {
			if !wildcard && !slices.Contains(allowed, origin) {
				http.Error(w, "forbidden origin", http.StatusForbidden)
				return
			}
			if wildcard {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			} else {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeResponse(w, time.Now().UnixMilli(), http.StatusOK, map[string]int{
		"rooms":       s.manager.Store().Len(),
		"connections": s.manager.Registry().Len(),
	})
}

type createGameRequest struct {
	HostUserID string                `json:"host_user_id"`
	Rounds     []internal.RoundInput `json:"rounds"`
}

func (s *Server) CreateGameHandler(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now().UnixMilli()

	var req createGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeResponse(w, startTime, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.HostUserID = strings.TrimSpace(req.HostUserID)
	for i, round := range req.Rounds {
		if round.Answer == nil {
			continue
		}
		answer := round.Answer.Normalize()
		if err := answer.Validate(); err != nil || !answer.Complete() {
			writeResponse(w, startTime, http.StatusBadRequest, "Round answers are not valid")
			return
		}
		req.Rounds[i].Answer = &answer
	}

	g, err := s.games.CreateGame(r.Context(), req.HostUserID, req.Rounds)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, internal.ErrBadRequest) {
			status = http.StatusBadRequest
		} else {
			log.Error().Err(err).Msg("[CreateGameHandler] create game failed")
		}
		data, _ := internal.PublicError(err)
		writeResponse(w, startTime, status, data.Message)
		return
	}

	writeResponse(w, startTime, http.StatusCreated, g)
}

func (s *Server) RoomSummaryHandler(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now().UnixMilli()
	code := mux.Vars(r)["code"]

	summary, err := s.manager.Summary(code)
	if err != nil {
		writeResponse(w, startTime, http.StatusNotFound, "Room not found")
		return
	}
	summary.JoinURL = s.cfg.JoinURL(summary.Code)

	writeResponse(w, startTime, http.StatusOK, summary)
}

func (s *Server) RoomQRHandler(w http.ResponseWriter, r *http.Request) {
	summary, err := s.manager.Summary(mux.Vars(r)["code"])
	if err != nil {
		writeResponse(w, time.Now().UnixMilli(), http.StatusNotFound, "Room not found")
		return
	}

	png, err := qrcode.Encode(s.cfg.JoinURL(summary.Code), qrcode.Medium, qrSize)
	if err != nil {
		log.Error().Err(err).Str("room", summary.Code).Msg("[RoomQRHandler] qr encode failed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(png)
}

// writeResponse wraps data in the Response envelope.
func writeResponse(w http.ResponseWriter, startTime int64, status int, data any) {
	endTime := time.Now().UnixMilli()
	resp := internal.Response{
		StatusCode:    status,
		RespStartTime: startTime,
		RespEndTime:   endTime,
		NetRespTime:   endTime - startTime,
		Data:          data,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Error().Err(err).Msg("[writeResponse] encode failed")
	}
}
