/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
	"log"
	"strings"
	"time"
)

// GameError is a rejected-but-retryable game action. Kind is a stable
// machine-checkable discriminator; Message is shown to the player as-is.
type GameError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (e *GameError) Error() string {
	return e.Kind + ": " + e.Message
}

const (
	errInvalidName     = "invalidName"
	errNameTaken       = "nameTaken"
	errNoActiveRound   = "noActiveRound"
	errWindowExpired   = "windowExpired"
	errUnknownPlayer   = "unknownPlayer"
	errInvalidAnswer   = "invalidAnswer"
	errInvalidQuestion = "invalidQuestion"
	errOutOfQuestions  = "outOfQuestions"
	errDuplicate       = "duplicateQuestion"
)

func gameErrf(kind, format string, args ...any) *GameError {
	return &GameError{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}

func logf(cfg *Config, format string, args ...any) {
	if !cfg.verbose {
		return
	}

	log.Printf("%s | "+format, append([]any{time.Now().Format(logDate)}, args...)...)
}

func newPage(title, body string) string {
	var htmlBody strings.Builder

	htmlBody.WriteString(`<!DOCTYPE html><html lang="tr"><head>`)
	htmlBody.WriteString(`<style>`)
	htmlBody.WriteString(`html,body,a{display:block;height:100%;width:100%;text-decoration:none;color:inherit;cursor:auto;}</style>`)
	htmlBody.WriteString(fmt.Sprintf("<title>%s</title></head>", title))
	htmlBody.WriteString(fmt.Sprintf("<body><a href=\"/\">%s</a></body></html>", body))

	return htmlBody.String()
}
