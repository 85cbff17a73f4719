package main

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/xuri/excelize/v2"
)

const maxUploadBytes = 5 << 20 // 5MB

var startedAt = time.Now()

func writeJSON(cfg *Config, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	securityHeaders(cfg, w)
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(payload)
}

// checkAdmin enforces the shared admin password on mutating endpoints.
// An empty configured password disables the check.
func checkAdmin(cfg *Config, w http.ResponseWriter, r *http.Request) bool {
	if cfg.adminPassword == "" {
		return true
	}
	if r.Header.Get("X-Admin-Password") == cfg.adminPassword {
		return true
	}

	logf(cfg, "API: Rejected unauthorized request to %s from %s", r.URL.Path, realIP(r))

	writeJSON(cfg, w, http.StatusUnauthorized, map[string]any{
		"success": false,
		"error":   "Yetkisiz erişim! Yönetici şifresi gerekli.",
	})
	return false
}

func serveQuestions(cfg *Config, store *QuestionStore) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		questions := store.List()
		logf(cfg, "API: Serving %d questions to %s", len(questions), realIP(r))
		writeJSON(cfg, w, http.StatusOK, questions)
	}
}

func serveHealth(cfg *Config, store *QuestionStore, hub *Hub) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		writeJSON(cfg, w, http.StatusOK, map[string]any{
			"status":     "OK",
			"players":    hub.PlayerCount(),
			"questions":  store.Count(),
			"gameActive": hub.GameActive(),
			"uptime":     int(time.Since(startedAt).Seconds()),
			"timestamp":  time.Now().Format(time.RFC3339),
		})
	}
}

func handleDeleteQuestions(cfg *Config, store *QuestionStore) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		if !checkAdmin(cfg, w, r) {
			return
		}

		removed := store.Count()
		if err := store.RemoveAll(); err != nil {
			logf(cfg, "STORE: Deleting questions failed: %v", err)
			writeJSON(cfg, w, http.StatusInternalServerError, map[string]any{
				"success": false,
				"error":   "Sorular silinemedi.",
			})
			return
		}

		logf(cfg, "STORE: Deleted all %d questions", removed)

		writeJSON(cfg, w, http.StatusOK, map[string]any{
			"success":      true,
			"message":      "Tüm sorular başarıyla silindi!",
			"deletedCount": removed,
		})
	}
}

// handleUpload accepts a spreadsheet ("file" form field, .xlsx/.xls/.csv),
// reads the first two columns of each row as question/answer, and merges
// them onto the existing bank without dropping anything.
func handleUpload(cfg *Config, store *QuestionStore) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		if !checkAdmin(cfg, w, r) {
			return
		}

		startTime := time.Now()

		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

		file, header, err := r.FormFile("file")
		if err != nil {
			writeJSON(cfg, w, http.StatusBadRequest, map[string]any{
				"success": false,
				"error":   "Dosya yüklenmedi",
			})
			return
		}
		defer file.Close()

		rows, err := parseSpreadsheet(file, header.Filename)
		if err != nil {
			logf(cfg, "API: Rejected upload %q: %v", header.Filename, err)
			writeJSON(cfg, w, http.StatusBadRequest, map[string]any{
				"success": false,
				"error":   err.Error(),
			})
			return
		}

		added, skipped, err := store.AppendAll(rows)
		if err != nil {
			logf(cfg, "STORE: Persisting upload failed: %v", err)
			writeJSON(cfg, w, http.StatusInternalServerError, map[string]any{
				"success": false,
				"error":   "Dosya işlenirken bir hata oluştu.",
			})
			return
		}

		logf(cfg, "API: Upload %q (%s) from %s: %d added, %d skipped in %s",
			header.Filename,
			humanReadableSize(header.Size),
			realIP(r),
			added,
			skipped,
			time.Since(startTime).Round(time.Microsecond),
		)

		message := fmt.Sprintf("Dosya başarıyla işlendi! %d yeni soru eklendi", added)
		if skipped > 0 {
			message += fmt.Sprintf(", %d soru atlandı", skipped)
		}
		message += fmt.Sprintf(". Toplam: %d soru.", store.Count())

		writeJSON(cfg, w, http.StatusOK, map[string]any{
			"success": true,
			"message": message,
			"added":   added,
			"skipped": skipped,
			"total":   store.Count(),
		})
	}
}

// parseSpreadsheet extracts question/answer pairs from the first sheet of
// an Excel workbook or from a CSV file, first column question, second
// column answer.
func parseSpreadsheet(file io.Reader, filename string) ([]Question, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xls":
		workbook, err := excelize.OpenReader(file)
		if err != nil {
			return nil, errors.New("Excel dosyası okunamadı.")
		}
		defer workbook.Close()

		sheets := workbook.GetSheetList()
		if len(sheets) == 0 {
			return nil, errors.New("Excel dosyasında sayfa bulunamadı.")
		}

		rows, err := workbook.GetRows(sheets[0])
		if err != nil {
			return nil, errors.New("Excel sayfası okunamadı.")
		}

		return rowsToQuestions(rows), nil

	case ".csv":
		reader := csv.NewReader(file)
		reader.FieldsPerRecord = -1

		rows, err := reader.ReadAll()
		if err != nil {
			return nil, errors.New("CSV dosyası okunamadı.")
		}

		return rowsToQuestions(rows), nil

	default:
		return nil, errors.New("Sadece Excel veya CSV dosyaları (.xlsx, .xls, .csv) kabul edilir")
	}
}

func rowsToQuestions(rows [][]string) []Question {
	questions := make([]Question, 0, len(rows))
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		questions = append(questions, Question{
			Question: row[0],
			Answer:   row[1],
		})
	}
	return questions
}

// registerAPIRoutes mounts the question-bank HTTP surface:
//   - GET    $prefix/api/questions → full ordered question list
//   - GET    $prefix/api/health    → JSON server/game status
//   - POST   $prefix/api/upload    → spreadsheet merge (admin)
//   - DELETE $prefix/api/questions → clear the bank (admin)
func registerAPIRoutes(cfg *Config, mux *httprouter.Router, store *QuestionStore, hub *Hub) {
	mux.GET(cfg.prefix+"/api/questions", serveQuestions(cfg, store))

	mux.GET(cfg.prefix+"/api/health", serveHealth(cfg, store, hub))

	mux.POST(cfg.prefix+"/api/upload", handleUpload(cfg, store))

	mux.DELETE(cfg.prefix+"/api/questions", handleDeleteQuestions(cfg, store))
}
