package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/clearship/hscodex/internal/blob"
	"github.com/clearship/hscodex/internal/model"
	"github.com/clearship/hscodex/internal/process"
	"github.com/clearship/hscodex/internal/reconcile"
	"github.com/clearship/hscodex/internal/sheet"
	"github.com/clearship/hscodex/internal/store"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// maxUploadBytes caps manifest uploads; carrier files are small.
const maxUploadBytes = 32 << 20

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for upload, preview, processing, and review",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(env.store, env.blobs, env.proc),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx) //nolint:errcheck
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// newRouter wires the full API surface. Kept separate from the command
// so handler tests can drive it directly.
func newRouter(st store.Store, blobs blob.Store, proc *process.Processor) http.Handler {
	rec := reconcile.New(st)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	// The review UI is served from a different origin.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/upload", func(w http.ResponseWriter, req *http.Request) {
		handleUpload(w, req, blobs)
	})

	r.Post("/preview", func(w http.ResponseWriter, req *http.Request) {
		var body model.ProcessRequest
		if !decodeBody(w, req, &body) {
			return
		}
		result, err := proc.Preview(req.Context(), body.FileKey, body.CarrierID, body.TemplateID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	})

	r.Post("/process", func(w http.ResponseWriter, req *http.Request) {
		var body model.ProcessRequest
		if !decodeBody(w, req, &body) {
			return
		}
		resp, err := proc.Process(req.Context(), body)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	})

	r.Get("/results/*", func(w http.ResponseWriter, req *http.Request) {
		key := "results/" + chi.URLParam(req, "*")
		data, err := blobs.Get(req.Context(), key)
		if err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", xlsxContentType)
		w.WriteHeader(http.StatusOK)
		w.Write(data) //nolint:errcheck
	})

	r.Get("/carriers", func(w http.ResponseWriter, req *http.Request) {
		carriers, err := st.ListCarriers(req.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, carriers)
	})

	r.Get("/carriers/{carrierID}/templates", func(w http.ResponseWriter, req *http.Request) {
		templates, err := st.ListTemplates(req.Context(), chi.URLParam(req, "carrierID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, templates)
	})

	r.Post("/update-company", func(w http.ResponseWriter, req *http.Request) {
		var body model.UpdateCompanyRequest
		if !decodeBody(w, req, &body) {
			return
		}
		companyID, err := rec.CommitNewCompany(req.Context(), body)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"companyId": companyID})
	})

	r.Post("/select-product-hs-codes", func(w http.ResponseWriter, req *http.Request) {
		var body model.SelectHsCodesRequest
		if !decodeBody(w, req, &body) {
			return
		}
		if err := rec.SelectVariants(req.Context(), body); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}

// handleUpload accepts a manifest as a multipart "file" part or as the
// raw request body with an X-Filename header.
func handleUpload(w http.ResponseWriter, req *http.Request, blobs blob.Store) {
	req.Body = http.MaxBytesReader(w, req.Body, maxUploadBytes)

	var (
		data []byte
		name string
		err  error
	)
	if strings.HasPrefix(req.Header.Get("Content-Type"), "multipart/form-data") {
		file, header, ferr := req.FormFile("file")
		if ferr != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field \"file\" is required"})
			return
		}
		defer file.Close() //nolint:errcheck
		name = header.Filename
		data, err = io.ReadAll(file)
	} else {
		name = req.Header.Get("X-Filename")
		data, err = io.ReadAll(req.Body)
	}
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "read upload body"})
		return
	}
	if len(data) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "empty upload"})
		return
	}

	fileKey := process.UploadKey(name)
	if err := blobs.Put(req.Context(), fileKey, data); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"fileKey": fileKey})
}

func decodeBody(w http.ResponseWriter, req *http.Request, v any) bool {
	if err := json.NewDecoder(req.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

// writeError maps domain errors onto HTTP statuses with a JSON body.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrTemplateNotFound),
		errors.Is(err, store.ErrCompanyNotFound),
		errors.Is(err, blob.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, sheet.ErrCompanyNameMissing),
		errors.Is(err, process.ErrVerifyMismatch):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		zap.L().Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
