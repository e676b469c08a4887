/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
)

// Game-event failures are absorbed at the gateway: either dropped
// silently or logged, never surfaced to a client as a crash.
var (
	errUnknownIdentity  = errors.New("no registered player with this identity")
	errNotConnected     = errors.New("no player bound to this connection")
	errRoomFull         = errors.New("room already has two players")
	errNotAMember       = errors.New("player is not a member of this room")
	errSessionNotActive = errors.New("session is not active")
	errUnknownShape     = errors.New("shape is not live")
)

func logf(cfg *Config, format string, args ...any) {
	if !cfg.verbose {
		return
	}

	log.Printf("%s | "+format, append([]any{time.Now().Format(logDate)}, args...)...)
}

func newPage(title, body string) string {
	var htmlBody strings.Builder

	htmlBody.WriteString(`<!DOCTYPE html><html lang="en"><head>`)
	htmlBody.WriteString(`<style>`)
	htmlBody.WriteString(`html,body,a{display:block;height:100%;width:100%;text-decoration:none;color:inherit;cursor:auto;}</style>`)
	htmlBody.WriteString(fmt.Sprintf("<title>%s</title></head>", title))
	htmlBody.WriteString(fmt.Sprintf("<body><a href=\"/\">%s</a></body></html>", body))

	return htmlBody.String()
}
