package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/custodia-labs/nexus/internal/core/domain"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type userResponse struct {
	ID       string `json:"id,omitempty"`
	Username string `json:"username"`
}

type usageResponse struct {
	Username          string `json:"username"`
	TotalStorageBytes int64  `json:"total_storage_bytes"`
	QuotaBytes        int64  `json:"quota_bytes"`
	DocumentCount     int    `json:"document_count"`
}

type resultView struct {
	Source  string `json:"source"`
	Kind    string `json:"kind"`
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

type searchResponse struct {
	Results     []resultView `json:"results"`
	TimeTakenMs int64        `json:"time_taken_ms"`
}

type documentView struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	Title     string    `json:"title"`
	MIMEType  string    `json:"mime_type,omitempty"`
	Size      int64     `json:"size"`
	Indexed   bool      `json:"indexed"`
	CreatedAt time.Time `json:"created_at"`
}

func newDocumentView(d *domain.Document) documentView {
	return documentView{
		ID:        d.ID,
		Filename:  d.Filename,
		Title:     d.Title,
		MIMEType:  d.MIMEType,
		Size:      d.Size,
		Indexed:   d.Indexed,
		CreatedAt: d.CreatedAt,
	}
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func bindCredentials(c echo.Context) (credentialsRequest, error) {
	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return req, fmt.Errorf("%w: malformed request body", domain.ErrValidation)
	}
	return req, nil
}

func (s *Server) register(c echo.Context) error {
	req, err := bindCredentials(c)
	if err != nil {
		return err
	}
	user, err := s.services.Auth.Register(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, userResponse{ID: user.ID, Username: user.Username})
}

func (s *Server) login(c echo.Context) error {
	req, err := bindCredentials(c)
	if err != nil {
		return err
	}
	token, err := s.services.Auth.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return err
	}

	c.SetCookie(&http.Cookie{
		Name:     tokenCookie,
		Value:    token.Value,
		Path:     "/",
		Expires:  token.ExpiresAt,
		HttpOnly: true,
		Secure:   c.IsTLS(),
		SameSite: http.SameSiteLaxMode,
	})
	return c.JSON(http.StatusOK, loginResponse{Token: token.Value, ExpiresAt: token.ExpiresAt})
}

func (s *Server) logout(c echo.Context) error {
	if err := s.services.Auth.Logout(c.Request().Context(), credential(c)); err != nil {
		return err
	}
	c.SetCookie(&http.Cookie{
		Name:     tokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	return c.NoContent(http.StatusNoContent)
}

// parseToggles reads the source toggles in the order they appear in the
// raw query string, which decides the merge order.
func parseToggles(rawQuery string) ([]domain.SourceKind, bool, error) {
	var (
		order  []domain.SourceKind
		values = make(map[domain.SourceKind]bool)
		pkb    bool
	)
	for _, part := range strings.Split(rawQuery, "&") {
		if part == "" {
			continue
		}
		rawKey, rawVal, _ := strings.Cut(part, "=")
		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			continue
		}
		kind := domain.SourceKind(key)
		if !kind.IsValid() {
			continue
		}

		val, err := url.QueryUnescape(rawVal)
		if err != nil {
			return nil, false, fmt.Errorf("%w: toggle %s", domain.ErrValidation, key)
		}
		on := true
		if val != "" {
			on, err = strconv.ParseBool(val)
			if err != nil {
				return nil, false, fmt.Errorf("%w: toggle %s=%q is not a boolean", domain.ErrValidation, key, val)
			}
		}

		if kind == domain.SourcePKB {
			pkb = on
			continue
		}
		if _, seen := values[kind]; !seen {
			order = append(order, kind)
		}
		values[kind] = on
	}

	sources := make([]domain.SourceKind, 0, len(order))
	for _, k := range order {
		if values[k] {
			sources = append(sources, k)
		}
	}
	return sources, pkb, nil
}

func (s *Server) search(c echo.Context) error {
	start := time.Now()

	sources, pkb, err := parseToggles(c.Request().URL.RawQuery)
	if err != nil {
		return err
	}
	results, err := s.services.Search.Search(c.Request().Context(), domain.SearchRequest{
		UserID:  identity(c).UserID,
		Query:   c.QueryParam("q"),
		Sources: sources,
		PKB:     pkb,
	})
	if err != nil {
		return err
	}

	views := make([]resultView, 0, len(results))
	for _, r := range results {
		label := r.Label
		if label == "" {
			label = string(r.Source)
		}
		views = append(views, resultView{
			Source:  label,
			Kind:    string(r.Source),
			Title:   r.Title,
			URL:     r.URL,
			Snippet: r.Snippet,
		})
	}
	return c.JSON(http.StatusOK, searchResponse{
		Results:     views,
		TimeTakenMs: time.Since(start).Milliseconds(),
	})
}

func (s *Server) upload(c echo.Context) error {
	header, err := c.FormFile("file")
	if err != nil {
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			return httpErr
		}
		return fmt.Errorf("%w: invalid upload: missing file field", domain.ErrValidation)
	}

	f, err := header.Open()
	if err != nil {
		return fmt.Errorf("%w: invalid upload: %v", domain.ErrValidation, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("%w: invalid upload: %v", domain.ErrValidation, err)
	}

	doc, err := s.services.Documents.Put(c.Request().Context(), domain.Upload{
		UserID:   identity(c).UserID,
		Filename: header.Filename,
		MIMEType: header.Header.Get(echo.HeaderContentType),
		Data:     data,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]documentView{"document": newDocumentView(doc)})
}

func (s *Server) user(c echo.Context) error {
	usage, err := s.services.Users.Usage(c.Request().Context(), identity(c).UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, usageResponse{
		Username:          usage.Username,
		TotalStorageBytes: usage.TotalStorageBytes,
		QuotaBytes:        usage.QuotaBytes,
		DocumentCount:     usage.DocumentCount,
	})
}

func (s *Server) listDocuments(c echo.Context) error {
	docs, err := s.services.Documents.ListByUser(c.Request().Context(), identity(c).UserID)
	if err != nil {
		return err
	}
	views := make([]documentView, 0, len(docs))
	for i := range docs {
		views = append(views, newDocumentView(&docs[i]))
	}
	return c.JSON(http.StatusOK, map[string][]documentView{"documents": views})
}

func (s *Server) getDocument(c echo.Context) error {
	doc, err := s.services.Documents.Get(c.Request().Context(), identity(c).UserID, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]documentView{"document": newDocumentView(doc)})
}

func (s *Server) deleteDocument(c echo.Context) error {
	if err := s.services.Documents.Delete(c.Request().Context(), identity(c).UserID, c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
