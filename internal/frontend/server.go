// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package frontend serves the wall site: the wall page, its JSON and binary
// update endpoints, and the server-rendered item fragment.
package frontend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/safehtml/template"
	"github.com/safehtml-demo/wall/internal/cache"
	"github.com/safehtml-demo/wall/internal/derrors"
	"github.com/safehtml-demo/wall/internal/frontend/page"
	"github.com/safehtml-demo/wall/internal/frontend/serrors"
	"github.com/safehtml-demo/wall/internal/frontend/templates"
	"github.com/safehtml-demo/wall/internal/log"
	"github.com/safehtml-demo/wall/internal/middleware"
	"github.com/safehtml-demo/wall/internal/middleware/stats"
	"github.com/safehtml-demo/wall/internal/render"
	"github.com/safehtml-demo/wall/internal/store"
	"github.com/safehtml-demo/wall/static"
)

// Server can be installed to serve the wall site.
type Server struct {
	store             store.Store
	cache             *cache.Cache
	fragmentTTL       time.Duration
	variant           render.Variant
	allowVariantParam bool
	maxHTMLBytes      int
	serveStats        bool
	renderers         map[render.Variant]render.Renderer
	templates         map[string]*template.Template
	errorPage         []byte
}

// ServerConfig contains everything needed by a Server.
type ServerConfig struct {
	// Store holds the walls. It must be set.
	Store store.Store
	// Cache, if non-nil, caches rendered item fragments.
	Cache *cache.Cache
	// FragmentTTL is the lifetime of cached fragments.
	FragmentTTL time.Duration
	// Variant is the rendering used when a request does not ask for one.
	Variant render.Variant
	// AllowVariantParam lets requests pick a variant with ?variant=.
	AllowVariantParam bool
	// MaxHTMLBytes bounds the untrusted HTML of a posted item.
	MaxHTMLBytes int
	ServeStats   bool
}

// NewServer creates a new Server from the given config.
func NewServer(scfg ServerConfig) (_ *Server, err error) {
	defer derrors.Wrap(&err, "NewServer(...)")
	if scfg.Store == nil {
		return nil, errors.New("nil Store")
	}
	ts, err := templates.ParsePageTemplates(template.TrustedFSFromEmbed(static.FS))
	if err != nil {
		return nil, fmt.Errorf("error parsing templates: %v", err)
	}
	s := &Server{
		store:             scfg.Store,
		cache:             scfg.Cache,
		fragmentTTL:       scfg.FragmentTTL,
		variant:           scfg.Variant,
		allowVariantParam: scfg.AllowVariantParam,
		maxHTMLBytes:      scfg.MaxHTMLBytes,
		serveStats:        scfg.ServeStats,
		renderers:         map[render.Variant]render.Renderer{},
		templates:         ts,
	}
	for _, v := range render.Variants {
		s.renderers[v] = render.MustNew(v)
	}
	if _, ok := s.renderers[s.variant]; !ok {
		return nil, fmt.Errorf("unknown variant %v", s.variant)
	}
	errorPageBytes, err := s.renderErrorPage(context.Background(), http.StatusInternalServerError, "error", nil)
	if err != nil {
		return nil, fmt.Errorf("s.renderErrorPage(http.StatusInternalServerError, nil): %v", err)
	}
	s.errorPage = errorPageBytes
	return s, nil
}

// Install registers server routes using the given handler registration func.
func (s *Server) Install(handle func(string, http.Handler)) {
	var itemsHandler http.Handler = s.errorHandler(s.serveItems)
	if s.cache != nil {
		itemsHandler = middleware.Cache("items", s.cache, s.fragmentTTL, s.fragmentKey)(itemsHandler)
	}
	handle("GET /{$}", s.errorHandler(s.serveNewWall))
	handle("GET /{nonce}/wall", s.errorHandler(s.serveWallPage))
	handle("GET /{nonce}/wall.json", s.errorHandler(s.serveWallJSON))
	handle("POST /{nonce}/wall.json", s.errorHandler(s.serveAddJSON))
	handle("GET /{nonce}/wall.pb", s.errorHandler(s.serveWallProto))
	handle("POST /{nonce}/wall.pb", s.errorHandler(s.serveAddProto))
	handle("GET /{nonce}/items.html", itemsHandler)
	// Static files live at least one directory deep, so the pattern does
	// not overlap with the two-segment wall routes.
	handle("GET /static/{dir}/{file...}", http.StripPrefix("/static/", http.FileServer(http.FS(static.FS))))
	handle("GET /healthz", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		io.WriteString(w, "ok")
	}))
	handle("GET /robots.txt", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		http.ServeContent(w, r, "", time.Time{}, strings.NewReader("User-agent: *\nDisallow: /\n"))
	}))
	if s.serveStats {
		handle("GET /stats/{nonce}/wall",
			stats.Stats()(http.StripPrefix("/stats", s.errorHandler(s.serveWallPage))))
	}
}

// TagRoute categorizes incoming requests to the frontend for use in
// monitoring. Nonces never appear in tags.
func TagRoute(route string, r *http.Request) string {
	method, pattern, ok := strings.Cut(route, " ")
	if !ok {
		method, pattern = "", route
	}
	tag := strings.Trim(strings.ReplaceAll(pattern, "{nonce}", ""), "/")
	tag = strings.ReplaceAll(tag, "{$}", "")
	if method != "" && method != http.MethodGet {
		tag = strings.ToLower(method) + "-" + tag
	}
	return tag
}

func (s *Server) newBasePage(r *http.Request, title string) page.BasePage {
	nonce, _ := middleware.GetNonce(r.Context())
	return page.BasePage{
		HTMLTitle: title,
		Nonce:     nonce,
	}
}

// PanicHandler returns an http.HandlerFunc that can be used in HTTP
// middleware. It returns an error if something goes wrong pre-rendering the
// error template.
func (s *Server) PanicHandler() (_ http.HandlerFunc, err error) {
	defer derrors.Wrap(&err, "PanicHandler")
	status := http.StatusInternalServerError
	buf, err := s.renderErrorPage(context.Background(), status, "error", nil)
	if err != nil {
		return nil, err
	}
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		if _, err := io.Copy(w, bytes.NewReader(buf)); err != nil {
			log.Errorf(r.Context(), "Error copying panic template to ResponseWriter: %v", err)
		}
	}, nil
}

func (s *Server) errorHandler(f func(w http.ResponseWriter, r *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := f(w, r); err != nil {
			s.serveError(w, r, err)
		}
	}
}

func (s *Server) serveError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	var serr *serrors.ServerError
	if !errors.As(err, &serr) {
		serr = &serrors.ServerError{Status: derrors.ToHTTPStatus(err), Err: err}
	}
	if serr.Status == http.StatusInternalServerError {
		log.Error(ctx, err)
	} else {
		log.Infof(ctx, "returning %d (%s) for error %v", serr.Status, http.StatusText(serr.Status), err)
	}
	if serr.ResponseText == "" {
		serr.ResponseText = http.StatusText(serr.Status)
	}
	if r.Method == http.MethodPost {
		http.Error(w, serr.ResponseText, serr.Status)
		return
	}
	s.serveErrorPage(w, r, serr.Status, serr.Epage)
}

func (s *Server) serveErrorPage(w http.ResponseWriter, r *http.Request, status int, epage *page.ErrorPage) {
	templateName := "error"
	if epage != nil {
		if epage.TemplateName != "" {
			templateName = epage.TemplateName
		}
	} else {
		epage = &page.ErrorPage{}
	}
	if epage.Nonce == "" {
		epage.BasePage = s.newBasePage(r, epage.HTMLTitle)
	}
	buf, err := s.renderErrorPage(r.Context(), status, templateName, epage)
	if err != nil {
		log.Errorf(r.Context(), "s.renderErrorPage(w, %d, %v): %v", status, epage, err)
		buf = s.errorPage
		status = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := io.Copy(w, bytes.NewReader(buf)); err != nil {
		log.Errorf(r.Context(), "Error copying template %q buffer to ResponseWriter: %v", templateName, err)
	}
}

// renderErrorPage executes the error template with the given page.
func (s *Server) renderErrorPage(ctx context.Context, status int, templateName string, epage *page.ErrorPage) ([]byte, error) {
	statusInfo := fmt.Sprintf("%d %s", status, http.StatusText(status))
	if epage == nil {
		epage = &page.ErrorPage{}
	}
	if epage.MessageTemplate.String() == "" {
		epage.MessageTemplate = template.MakeTrustedTemplate(`<h3 class="Error-message">{{.}}</h3>`)
	}
	if epage.MessageData == nil {
		epage.MessageData = statusInfo
	}
	if epage.HTMLTitle == "" {
		epage.HTMLTitle = statusInfo
	}
	if templateName == "" {
		templateName = "error"
	}

	etmpl, err := s.findTemplate(templateName)
	if err != nil {
		return nil, err
	}
	tmpl, err := etmpl.Clone()
	if err != nil {
		return nil, err
	}
	if _, err := tmpl.New("message").ParseFromTrustedTemplate(epage.MessageTemplate); err != nil {
		return nil, err
	}
	return executeTemplate(ctx, templateName, tmpl, epage)
}

// servePage is used to execute all templates for a *Server.
func (s *Server) servePage(ctx context.Context, w http.ResponseWriter, templateName string, page any) {
	defer stats.Timer(ctx, "serve")()

	buf, err := s.renderPage(ctx, templateName, page)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err != nil {
		log.Errorf(ctx, "s.renderPage(%q, %+v): %v", templateName, page, err)
		w.WriteHeader(http.StatusInternalServerError)
		buf = s.errorPage
	}
	if _, err := io.Copy(w, bytes.NewReader(buf)); err != nil {
		log.Errorf(ctx, "Error copying template %q buffer to ResponseWriter: %v", templateName, err)
	}
}

// renderPage executes the given templateName with page.
func (s *Server) renderPage(ctx context.Context, templateName string, page any) ([]byte, error) {
	defer stats.Timer(ctx, "render")()

	tmpl, err := s.findTemplate(templateName)
	if err != nil {
		return nil, err
	}
	return executeTemplate(ctx, templateName, tmpl, page)
}

func (s *Server) findTemplate(templateName string) (*template.Template, error) {
	tmpl := s.templates[templateName]
	if tmpl == nil {
		return nil, fmt.Errorf("BUG: s.templates[%q] not found", templateName)
	}
	return tmpl, nil
}

func executeTemplate(ctx context.Context, templateName string, tmpl *template.Template, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		log.Errorf(ctx, "Error executing page template %q: %v", templateName, err)
		return nil, err
	}
	return buf.Bytes(), nil
}
