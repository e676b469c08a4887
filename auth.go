/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"io"
	"net/http"

	"github.com/julienschmidt/httprouter"
)

const sessionCookieName = "sqware_session"

// Avatars are opaque strings to the game core; the bundled client renders
// them as-is. One is picked at random on signup.
var allAvatars = []string{
	"🟥", "🟩", "🟦", "🟨", "🟪", "🟧", "⬛", "⬜",
}

func defineAvatar() string {
	return allAvatars[randInt(len(allAvatars))]
}

func setSessionCookie(w http.ResponseWriter, identity string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    identity,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:   sessionCookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
}

// handleLogin processes the login form, attaches the account to a fresh
// identity and sends the player to the game page.
func handleLogin(cfg *Config, reg *Registry, store *Store) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		pseudo := r.FormValue("identifiant")
		password := r.FormValue("password")

		if pseudo == "" || password == "" {
			authError(cfg, w, "Both a username and a password are required.")
			return
		}

		user, err := store.Authenticate(pseudo, password)
		if errors.Is(err, errBadLogin) {
			authError(cfg, w, "Unknown username or wrong password.")
			return
		}
		if err != nil {
			authError(cfg, w, "Login is unavailable right now. Please try again.")
			return
		}

		if reg.IsLogged(pseudo) {
			authError(cfg, w, "This account is already playing from another session.")
			return
		}

		player := &Player{
			ID:        newID(16),
			Pseudo:    user.Pseudo,
			Avatar:    user.Avatar,
			BestScore: user.BestScore,
		}
		reg.AddIdentity(player)
		setSessionCookie(w, player.ID)

		logf(cfg, "AUTH: Player %q logged in", player.Pseudo)
		http.Redirect(w, r, cfg.prefix+"/sqware", http.StatusSeeOther)
	}
}

// handleSignin registers a new account, assigns its avatar and logs the
// player straight in.
func handleSignin(cfg *Config, reg *Registry, store *Store) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		pseudo := r.FormValue("identifiant")
		password := r.FormValue("password")

		if pseudo == "" || password == "" {
			authError(cfg, w, "Both a username and a password are required.")
			return
		}

		user, err := store.CreateUser(pseudo, password, defineAvatar())
		if errors.Is(err, errPseudoTaken) {
			authError(cfg, w, "This username is already registered.")
			return
		}
		if err != nil {
			authError(cfg, w, "Signup is unavailable right now. Please try again.")
			return
		}

		player := &Player{
			ID:     newID(16),
			Pseudo: user.Pseudo,
			Avatar: user.Avatar,
		}
		reg.AddIdentity(player)
		setSessionCookie(w, player.ID)

		logf(cfg, "AUTH: Player %q signed up", player.Pseudo)
		http.Redirect(w, r, cfg.prefix+"/sqware", http.StatusSeeOther)
	}
}

func handleLogout(cfg *Config, reg *Registry) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		if identity := sessionIdentity(r); identity != "" {
			reg.RemoveIdentity(identity)
		}
		clearSessionCookie(w)
		http.Redirect(w, r, cfg.prefix+"/", http.StatusSeeOther)
	}
}

func authError(cfg *Config, w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	securityHeaders(cfg, w)
	w.WriteHeader(http.StatusOK)

	io.WriteString(w, newPage("Sqware", message))
}

func registerAuth(cfg *Config, mux *httprouter.Router, reg *Registry, store *Store) {
	mux.POST(cfg.prefix+"/login", handleLogin(cfg, reg, store))
	mux.POST(cfg.prefix+"/signin", handleSignin(cfg, reg, store))
	mux.POST(cfg.prefix+"/logout", handleLogout(cfg, reg))
}
