package controllers

import (
	"net/http"
	"strconv"

	"flyvemdm/backend/app/services"
)

// MosquittoController answers the HTTP backend of the broker auth plugin.
// Only the status code matters: 200 grants, 403 denies.
type MosquittoController struct{ Auth *services.MosquittoAuthService }

func NewMosquittoController(auth *services.MosquittoAuthService) *MosquittoController {
	return &MosquittoController{Auth: auth}
}

func (c *MosquittoController) Handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	q := r.URL.Query()
	username := r.PostForm.Get("username")
	var granted bool
	switch {
	case q.Has("authenticate"):
		granted = c.Auth.Authenticate(username, r.PostForm.Get("password"))
	case q.Has("superuser"):
		granted = c.Auth.Superuser(username)
	case q.Has("authorize"):
		acc, err := strconv.Atoi(r.PostForm.Get("acc"))
		granted = err == nil && c.Auth.Authorize(username, r.PostForm.Get("topic"), acc)
	default:
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if granted {
		w.WriteHeader(http.StatusOK)
		return
	}
	w.WriteHeader(http.StatusForbidden)
}
