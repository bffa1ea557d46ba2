package handlers

import (
	"html/template"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/n-crespo/theopendissent/backend/internal/repositories"
)

// sharePage renders the crawler-facing preview. html/template escapes the
// user-written content on the way in.
var sharePage = template.Must(template.New("share").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>{{.Title}}</title>
  <meta property="og:type" content="article">
  <meta property="og:title" content="{{.Title}}">
  <meta property="og:description" content="{{.Description}}">
  <meta property="og:url" content="{{.URL}}">
  <meta name="twitter:card" content="summary">
  <meta name="twitter:title" content="{{.Title}}">
  <meta name="twitter:description" content="{{.Description}}">
  <meta http-equiv="refresh" content="0;url={{.URL}}">
</head>
<body>
  <p>{{.Description}}</p>
  <a href="{{.URL}}">Continue to the discussion</a>
</body>
</html>
`))

type sharePageData struct {
	Title       string
	Description string
	URL         string
}

// ShareHandler serves link previews for shared posts. Crawlers get OpenGraph
// and Twitter card tags; browsers are bounced straight to the app.
type ShareHandler struct {
	feedRepository repositories.FeedRepository
	appBaseURL     string
}

// NewShareHandler creates a new ShareHandler
func NewShareHandler(feedRepo repositories.FeedRepository, appBaseURL string) *ShareHandler {
	return &ShareHandler{feedRepository: feedRepo, appBaseURL: appBaseURL}
}

// RegisterShareRoutes registers share-preview routes
func (h *ShareHandler) RegisterShareRoutes(e *echo.Echo) {
	e.GET("/share", h.SharePreview)
}

// SharePreview renders the preview page for ?postId=. A missing or deleted
// post redirects to the app root instead of serving a dead preview.
func (h *ShareHandler) SharePreview(c echo.Context) error {
	postID := c.QueryParam("postId")
	if postID == "" {
		return c.Redirect(http.StatusFound, h.appBaseURL)
	}

	// Shared replies preview their top-level post; the archive only indexes
	// those.
	if parentID := c.QueryParam("parentId"); parentID != "" {
		postID = parentID
	}

	post, err := h.feedRepository.Get(c.Request().Context(), postID)
	if err != nil {
		return c.Redirect(http.StatusFound, h.appBaseURL)
	}

	description := post.Content
	if runes := []rune(description); len(runes) > 200 {
		description = string(runes[:200]) + "…"
	}

	data := sharePageData{
		Title:       "The Open Dissent",
		Description: description,
		URL:         h.appBaseURL + "/posts/" + post.ID,
	}

	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(http.StatusOK)
	return sharePage.Execute(c.Response(), data)
}
