package server

import (
	"errors"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"jobboard/internal/featureflags"
	"jobboard/internal/media"
	"jobboard/internal/middleware"
	"jobboard/internal/models"

	"github.com/gofiber/fiber/v2"
)

// ReportRequest is the confirmation body of a report.
type ReportRequest struct {
	Confirm bool `json:"confirm"`
}

// GetPosts handles GET /api/posts
// @Summary List posts
// @Description Visible job posts, newest first. Expired and hidden posts are purged on read.
// @Tags posts
// @Produce json
// @Success 200 {array} models.PostView
// @Router /posts [get]
func (s *Server) GetPosts(c *fiber.Ctx) error {
	ctx := c.UserContext()

	posts, err := s.postService.Load(ctx)
	if err != nil {
		// the board renders empty rather than failing
		middleware.Logger.WarnContext(ctx, "board unavailable, serving empty list", slog.String("error", err.Error()))
		return c.JSON([]models.PostView{})
	}
	return c.JSON(s.views(posts))
}

// CreatePost handles POST /api/posts
// @Summary Create post
// @Description Accepts a JSON draft with a data-URL image, or a multipart form with an image file.
// @Tags posts
// @Accept json,mpfd
// @Produce json
// @Param draft body models.Draft true "Post draft"
// @Success 201 {array} models.PostView
// @Failure 400 {object} models.ErrorResponse
// @Failure 413 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	ctx := c.UserContext()

	var (
		draft models.Draft
		err   error
	)
	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		draft, err = s.parseMultipartDraft(c)
	} else if perr := c.BodyParser(&draft); perr != nil {
		err = models.NewValidationError("Invalid request body")
	}
	if err != nil {
		return respondDraftError(c, err)
	}

	posts, err := s.postService.AddPost(ctx, draft)
	if err != nil {
		return respondDraftError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(s.views(posts))
}

// respondDraftError maps oversized images, by bytes or by pixels, to 413.
func respondDraftError(c *fiber.Ctx, err error) error {
	if errors.Is(err, media.ErrTooLarge) {
		return models.RespondWithError(c, fiber.StatusRequestEntityTooLarge,
			models.NewValidationError("Image exceeds the upload size limit"))
	}
	return models.RespondWithError(c, models.StatusFor(err), err)
}

func (s *Server) parseMultipartDraft(c *fiber.Ctx) (models.Draft, error) {
	draft := models.Draft{
		Title:       c.FormValue("title"),
		Description: c.FormValue("description"),
		Phone:       c.FormValue("phone"),
	}

	if raw := strings.TrimSpace(c.FormValue("price")); raw != "" {
		price, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return draft, models.NewValidationError("Price must be a number")
		}
		draft.Price = price
	}

	fh, err := c.FormFile("image")
	if err != nil {
		return draft, models.NewValidationError("Image file is required")
	}
	limit := int64(s.config.MaxUploadBytes())
	if fh.Size > limit {
		return draft, media.ErrTooLarge
	}

	f, err := fh.Open()
	if err != nil {
		return draft, models.NewValidationError("Unable to read image")
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return draft, models.NewValidationError("Unable to read image")
	}

	dataURL, _, err := media.Normalize(data, media.Options{
		MaxEdge:   s.config.ImageMaxEdge,
		MaxBytes:  limit,
		MaxPixels: s.config.ImageMaxPixels,
		WebP:      s.featureFlags.Enabled(featureflags.WebPUploads, c.IP()),
	})
	if err != nil {
		if errors.Is(err, media.ErrTooLarge) {
			return draft, err
		}
		return draft, &models.AppError{Code: models.CodeValidation, Message: "Unsupported image", Err: err}
	}
	draft.Image = dataURL
	return draft, nil
}

// LikePost handles POST /api/posts/:id/like
// @Summary Like post
// @Tags posts
// @Produce json
// @Param id path string true "Post ID"
// @Success 200 {array} models.PostView
// @Failure 503 {object} models.ErrorResponse
// @Router /posts/{id}/like [post]
func (s *Server) LikePost(c *fiber.Ctx) error {
	id, err := parsePostID(c)
	if err != nil {
		return nil
	}

	posts, err := s.postService.LikePost(c.UserContext(), id)
	if err != nil {
		return models.RespondWithError(c, models.StatusFor(err), err)
	}
	return c.JSON(s.views(posts))
}

// ReportPost handles POST /api/posts/:id/report
// @Summary Report post
// @Description Requires {"confirm": true}. The post is hidden once its reports reach the threshold.
// @Tags posts
// @Accept json
// @Produce json
// @Param id path string true "Post ID"
// @Param request body ReportRequest true "Confirmation"
// @Success 200 {array} models.PostView
// @Failure 400 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /posts/{id}/report [post]
func (s *Server) ReportPost(c *fiber.Ctx) error {
	id, err := parsePostID(c)
	if err != nil {
		return nil
	}

	var req ReportRequest
	if err := c.BodyParser(&req); err != nil || !req.Confirm {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Report must be confirmed"))
	}

	posts, err := s.postService.ReportPost(c.UserContext(), id)
	if err != nil {
		return models.RespondWithError(c, models.StatusFor(err), err)
	}
	return c.JSON(s.views(posts))
}

// GetPostImage handles GET /api/posts/:id/image
// @Summary Full-size post image
// @Tags posts
// @Produce image/jpeg,image/png,image/gif,image/webp
// @Param id path string true "Post ID"
// @Success 200 {file} binary
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/image [get]
func (s *Server) GetPostImage(c *fiber.Ctx) error {
	id, err := parsePostID(c)
	if err != nil {
		return nil
	}

	post, err := s.postService.Get(c.UserContext(), id)
	if err != nil {
		return models.RespondWithError(c, models.StatusFor(err), err)
	}

	img, err := media.ParseDataURL(post.Image)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
	}

	c.Set(fiber.HeaderContentType, img.MIME)
	c.Set(fiber.HeaderCacheControl, "public, max-age=300")
	return c.Send(img.Data)
}

// GetHiddenPosts handles GET /api/moderation/hidden
// @Summary Hidden posts
// @Description Posts removed from the board by reports, until they expire.
// @Tags moderation
// @Produce json
// @Success 200 {array} models.PostView
// @Failure 503 {object} models.ErrorResponse
// @Router /moderation/hidden [get]
func (s *Server) GetHiddenPosts(c *fiber.Ctx) error {
	posts, err := s.postService.Hidden(c.UserContext())
	if err != nil {
		return models.RespondWithError(c, models.StatusFor(err), err)
	}
	return c.JSON(s.views(posts))
}

func (s *Server) views(posts []models.JobPost) []models.PostView {
	return models.NewPostViews(posts, s.postService.Now(), s.postService.TTL())
}
