package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"
)

// generateAPIKey generates a random 32-byte hex string.
func generateAPIKey() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

func (s *Server) validateMasterKey(r *http.Request) bool {
	return s.masterKey != "" && r.Header.Get("Authorization") == s.masterKey
}

func (s *Server) validateKey(key string) bool {
	return s.keys.ValidateAPIKey(context.Background(), key)
}

// CreateAPIKey creates a new API key.
func (s *Server) CreateAPIKey(w http.ResponseWriter, r *http.Request) {
	if !s.validateMasterKey(r) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	key, err := generateAPIKey()
	if err != nil {
		http.Error(w, "Failed to generate API key", http.StatusInternalServerError)
		return
	}

	created, err := s.keys.CreateAPIKey(r.Context(), key, req.Description)
	if err != nil {
		http.Error(w, "Failed to create API key", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(created)
}

// ListAPIKeys lists all API keys.
func (s *Server) ListAPIKeys(w http.ResponseWriter, r *http.Request) {
	if !s.validateMasterKey(r) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	keys, err := s.keys.ListAPIKeys(r.Context())
	if err != nil {
		http.Error(w, "Failed to list API keys", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(keys)
}

// DeleteAPIKey deactivates an API key by id.
func (s *Server) DeleteAPIKey(w http.ResponseWriter, r *http.Request) {
	if !s.validateMasterKey(r) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	id, err := strconv.Atoi(r.URL.Query().Get("id"))
	if err != nil {
		http.Error(w, "Invalid key id", http.StatusBadRequest)
		return
	}

	if err := s.keys.DeactivateAPIKey(r.Context(), id); err != nil {
		http.Error(w, "Failed to deactivate API key", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
