// utils/safelog.go
//
// Logging helpers that mask amounts and identifiers in production so budget
// figures never end up in hosted log aggregators.

package utils

import (
	"fmt"
	"log"
	"os"
	"regexp"
	"strings"
)

var (
	// IsProduction enables masking of sensitive values.
	IsProduction = os.Getenv("GIN_MODE") == "release" ||
		os.Getenv("ENVIRONMENT") == "production" ||
		os.Getenv("ENV") == "production"

	LogLevel = getLogLevel()
)

const (
	LogLevelDebug = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

func getLogLevel() int {
	switch strings.ToUpper(os.Getenv("LOG_LEVEL")) {
	case "DEBUG":
		return LogLevelDebug
	case "WARN", "WARNING":
		return LogLevelWarn
	case "ERROR":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

var (
	amountWithCurrencyRegex = regexp.MustCompile(`\b\d+([.,]\d{1,2})?\s*(€|EUR|CHF|GBP|USD|£|\$)\b`)
	uuidRegex               = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)
)

// MaskString masks amounts and full UUIDs when running in production.
func MaskString(input string) string {
	if !IsProduction {
		return input
	}
	result := amountWithCurrencyRegex.ReplaceAllString(input, "***€")
	result = uuidRegex.ReplaceAllStringFunc(result, func(id string) string {
		return id[:8] + "..."
	})
	return result
}

// MaskAmount masks a monetary value in production.
func MaskAmount(amount float64) string {
	if IsProduction {
		return "***"
	}
	return fmt.Sprintf("%.2f", amount)
}

// MaskID keeps the first 8 characters of an identifier in production.
func MaskID(id string) string {
	if !IsProduction {
		return id
	}
	if len(id) <= 8 {
		return "***"
	}
	return id[:8] + "..."
}

// SafeLog logs with masking applied.
func SafeLog(format string, args ...interface{}) {
	log.Print(MaskString(fmt.Sprintf(format, args...)))
}

// SafeDebug logs only when LOG_LEVEL=DEBUG.
func SafeDebug(format string, args ...interface{}) {
	if LogLevel > LogLevelDebug {
		return
	}
	log.Printf("[DEBUG] %s", MaskString(fmt.Sprintf(format, args...)))
}

func SafeInfo(format string, args ...interface{}) {
	if LogLevel > LogLevelInfo {
		return
	}
	log.Printf("[INFO] %s", MaskString(fmt.Sprintf(format, args...)))
}

func SafeWarn(format string, args ...interface{}) {
	if LogLevel > LogLevelWarn {
		return
	}
	log.Printf("[WARN] %s", MaskString(fmt.Sprintf(format, args...)))
}

func SafeError(format string, args ...interface{}) {
	log.Printf("[ERROR] %s", MaskString(fmt.Sprintf(format, args...)))
}

// LogQuoteAction logs an action on a quote without exposing amounts.
func LogQuoteAction(action, quoteID, userID string) {
	log.Printf("[Quote] %s - Quote: %s User: %s", action, MaskID(quoteID), MaskID(userID))
}

// LogSyncAction logs a persistence/sync-queue event.
func LogSyncAction(action, quoteID string, pending int) {
	log.Printf("[Sync] %s - Quote: %s Pending: %d", action, MaskID(quoteID), pending)
}

// LogWebSocket logs a websocket hub event.
func LogWebSocket(action, quoteID string) {
	log.Printf("[WS] %s - Quote: %s", action, MaskID(quoteID))
}
