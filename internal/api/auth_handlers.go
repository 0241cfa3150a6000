package api

import (
	"net/http"

	"github.com/amirk1998/daybook/internal/models"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req models.CreateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, r, err)
		return
	}

	user, err := s.auth.Register(r.Context(), &req)
	if err != nil {
		fail(w, r, err)
		return
	}
	if _, err := s.sessions.Create(w, r, user.ID, user.Username); err != nil {
		fail(w, r, err)
		return
	}

	respond(w, http.StatusCreated, "registration successful", user.View())
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, r, err)
		return
	}

	user, err := s.auth.Login(r.Context(), &req)
	if err != nil {
		fail(w, r, err)
		return
	}
	if _, err := s.sessions.Create(w, r, user.ID, user.Username); err != nil {
		fail(w, r, err)
		return
	}

	respond(w, http.StatusOK, "login successful", user.View())
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.auth.Logout(userIDFrom(r.Context()))
	s.sessions.Destroy(w, r)
	respond(w, http.StatusOK, "logged out", nil)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := s.auth.Me(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "user retrieved", user.View())
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, r, err)
		return
	}

	user, err := s.auth.UpdateProfile(r.Context(), userIDFrom(r.Context()), &req)
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "profile updated", user.View())
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req models.ChangePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, r, err)
		return
	}

	if err := s.auth.ChangePassword(r.Context(), userIDFrom(r.Context()), &req); err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "password changed", nil)
}
