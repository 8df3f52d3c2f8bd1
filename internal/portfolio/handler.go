package portfolio

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"

	"portfolio-service/internal/logger"
	"portfolio-service/internal/middleware"
	"portfolio-service/internal/utils"
	"portfolio-service/internal/web"

	"github.com/gin-gonic/gin"
)

// Store is the table storage behind the dashboard and public pages.
type Store interface {
	GetProfile(ctx context.Context, userID string) (*Profile, error)
	SaveProfile(ctx context.Context, userID, email string, in ProfileInput) error
	SetAvatar(ctx context.Context, userID, email, avatarURL string) (string, error)
	ListProjects(ctx context.Context, userID string) ([]Project, error)
	CreateProject(ctx context.Context, userID string, in ProjectInput) (string, error)
	UpdateProject(ctx context.Context, userID, projectID string, in ProjectInput) error
	DeleteProject(ctx context.Context, userID, projectID string) error
}

// Avatars is the bucket profile images are uploaded to.
type Avatars interface {
	Put(ctx context.Context, name string, r io.Reader) (string, error)
	Delete(ctx context.Context, name string) error
	NameFromURL(u string) (string, bool)
}

var avatarTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

type Handler struct {
	store          Store
	avatars        Avatars
	maxAvatarBytes int64
}

func NewHandler(store Store, avatars Avatars, maxAvatarBytes int64) *Handler {
	return &Handler{
		store:          store,
		avatars:        avatars,
		maxAvatarBytes: maxAvatarBytes,
	}
}

// RegisterDashboard mounts the owner pages. The group must be guarded.
func (h *Handler) RegisterDashboard(r gin.IRouter) {
	r.GET("", h.dashboard)
	r.GET("/profile", h.profile)
	r.POST("/profile", h.saveProfile)
	r.POST("/profile/avatar", h.uploadAvatar)
	r.GET("/projects", h.projects)
	r.POST("/projects", h.createProject)
	r.POST("/projects/:id", h.updateProject)
	r.POST("/projects/:id/delete", h.deleteProject)
}

// RegisterPublic mounts the public portfolio page.
func (h *Handler) RegisterPublic(r gin.IRouter) {
	r.GET("/portfolio/:id", h.portfolio)
}

func owner(c *gin.Context) (userID, email string) {
	userID, _ = middleware.UserIDFromContext(c.Request.Context())
	email, _ = middleware.EmailFromContext(c.Request.Context())
	return userID, email
}

// lookupProfile treats a missing profile as nil.
func (h *Handler) lookupProfile(ctx context.Context, userID string) (*Profile, error) {
	p, err := h.store.GetProfile(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return p, err
}

func (h *Handler) dashboard(c *gin.Context) {
	ctx := c.Request.Context()
	userID, _ := owner(c)
	data := gin.H{
		"Title":        "Dashboard",
		"PortfolioURL": "/portfolio/" + userID,
		"ProjectCount": 0,
	}

	profile, err := h.lookupProfile(ctx, userID)
	if err != nil {
		web.Fail(c, http.StatusInternalServerError, "dashboard.html", data, err)
		return
	}
	projects, err := h.store.ListProjects(ctx, userID)
	if err != nil {
		web.Fail(c, http.StatusInternalServerError, "dashboard.html", data, err)
		return
	}

	data["Profile"] = profile
	data["ProjectCount"] = len(projects)
	c.HTML(http.StatusOK, "dashboard.html", web.Page(c, data))
}

func (h *Handler) profileData(profile *Profile, email string) gin.H {
	if profile == nil {
		profile = &Profile{Email: email}
	}
	return gin.H{
		"Title":   "Profile",
		"Profile": profile,
		"Form": ProfileInput{
			Name:     profile.Name,
			JobTitle: profile.JobTitle,
			Bio:      profile.Bio,
		},
	}
}

func (h *Handler) profile(c *gin.Context) {
	userID, email := owner(c)

	profile, err := h.lookupProfile(c.Request.Context(), userID)
	if err != nil {
		web.Fail(c, http.StatusInternalServerError, "profile.html", h.profileData(nil, email), err)
		return
	}

	data := h.profileData(profile, email)
	switch {
	case c.Query("saved") != "":
		data["Notice"] = "Profile saved."
	case c.Query("uploaded") != "":
		data["Notice"] = "Profile image updated."
	}
	c.HTML(http.StatusOK, "profile.html", web.Page(c, data))
}

func (h *Handler) saveProfile(c *gin.Context) {
	ctx := c.Request.Context()
	userID, email := owner(c)

	var in ProfileInput
	if err := c.ShouldBind(&in); err != nil {
		c.HTML(http.StatusBadRequest, "profile.html", web.Page(c, h.profileData(nil, email)))
		return
	}
	in = in.normalized()

	if err := in.Validate(); err != nil {
		profile, _ := h.lookupProfile(ctx, userID)
		data := h.profileData(profile, email)
		data["Form"] = in
		data["Errors"] = web.FieldErrors(err)
		c.HTML(http.StatusBadRequest, "profile.html", web.Page(c, data))
		return
	}

	if err := h.store.SaveProfile(ctx, userID, email, in); err != nil {
		data := h.profileData(nil, email)
		data["Form"] = in
		web.Fail(c, http.StatusInternalServerError, "profile.html", data, err)
		return
	}

	logger.Info("profile saved", map[string]any{
		"user_id": userID,
	})
	c.Redirect(http.StatusSeeOther, "/dashboard/profile?saved=1")
}

func (h *Handler) uploadAvatar(c *gin.Context) {
	ctx := c.Request.Context()
	userID, email := owner(c)

	reject := func(msg string) {
		profile, _ := h.lookupProfile(ctx, userID)
		data := h.profileData(profile, email)
		data["Error"] = msg
		c.HTML(http.StatusBadRequest, "profile.html", web.Page(c, data))
	}

	// multipart overhead on top of the image itself
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxAvatarBytes+64<<10)

	header, err := c.FormFile("avatar")
	if err != nil {
		reject("Choose an image to upload (1MB max).")
		return
	}
	if header.Size > h.maxAvatarBytes {
		reject("Images must be 1MB or smaller.")
		return
	}

	file, err := header.Open()
	if err != nil {
		web.Fail(c, http.StatusInternalServerError, "profile.html", h.profileData(nil, email), err)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxAvatarBytes+1))
	if err != nil {
		web.Fail(c, http.StatusInternalServerError, "profile.html", h.profileData(nil, email), err)
		return
	}
	if int64(len(data)) > h.maxAvatarBytes {
		reject("Images must be 1MB or smaller.")
		return
	}

	ext, ok := avatarTypes[http.DetectContentType(data)]
	if !ok {
		reject("Upload a JPG, PNG, GIF or WebP image.")
		return
	}

	suffix, err := utils.RandomString(6)
	if err != nil {
		web.Fail(c, http.StatusInternalServerError, "profile.html", h.profileData(nil, email), err)
		return
	}

	url, err := h.avatars.Put(ctx, userID+"-"+suffix+ext, bytes.NewReader(data))
	if err != nil {
		web.Fail(c, http.StatusInternalServerError, "profile.html", h.profileData(nil, email), err)
		return
	}

	previous, err := h.store.SetAvatar(ctx, userID, email, url)
	if err != nil {
		if name, ok := h.avatars.NameFromURL(url); ok {
			_ = h.avatars.Delete(ctx, name)
		}
		web.Fail(c, http.StatusInternalServerError, "profile.html", h.profileData(nil, email), err)
		return
	}

	if name, ok := h.avatars.NameFromURL(previous); ok {
		if err := h.avatars.Delete(ctx, name); err != nil {
			logger.Warn("failed to delete previous avatar", map[string]any{
				"user_id": userID,
				"error":   err,
			})
		}
	}

	logger.Info("avatar uploaded", map[string]any{
		"user_id": userID,
		"bytes":   len(data),
	})
	c.Redirect(http.StatusSeeOther, "/dashboard/profile?uploaded=1")
}

func (h *Handler) projectsData(projects []Project) gin.H {
	return gin.H{
		"Title":    "Projects",
		"Projects": projects,
		"Form":     ProjectInput{},
	}
}

func (h *Handler) projects(c *gin.Context) {
	userID, _ := owner(c)

	projects, err := h.store.ListProjects(c.Request.Context(), userID)
	if err != nil {
		web.Fail(c, http.StatusInternalServerError, "projects.html", h.projectsData(nil), err)
		return
	}

	data := h.projectsData(projects)
	if editID := c.Query("edit"); editID != "" {
		for _, p := range projects {
			if p.ID == editID {
				data["EditingID"] = p.ID
				data["Form"] = ProjectInput{
					Name:        p.Name,
					Description: p.Description,
					DemoURL:     p.DemoURL,
					RepoURL:     p.RepoURL,
				}
			}
		}
	}
	c.HTML(http.StatusOK, "projects.html", web.Page(c, data))
}

// bindProject re-renders the list with field errors when the form is
// invalid and reports whether the caller may continue.
func (h *Handler) bindProject(c *gin.Context, editingID string) (ProjectInput, bool) {
	userID, _ := owner(c)

	var in ProjectInput
	_ = c.ShouldBind(&in)
	in = in.normalized()

	err := in.Validate()
	if err == nil {
		return in, true
	}

	projects, _ := h.store.ListProjects(c.Request.Context(), userID)
	data := h.projectsData(projects)
	data["Form"] = in
	data["Errors"] = web.FieldErrors(err)
	if editingID != "" {
		data["EditingID"] = editingID
	}
	c.HTML(http.StatusBadRequest, "projects.html", web.Page(c, data))
	return in, false
}

func (h *Handler) createProject(c *gin.Context) {
	userID, _ := owner(c)

	in, ok := h.bindProject(c, "")
	if !ok {
		return
	}

	id, err := h.store.CreateProject(c.Request.Context(), userID, in)
	if err != nil {
		data := h.projectsData(nil)
		data["Form"] = in
		web.Fail(c, http.StatusInternalServerError, "projects.html", data, err)
		return
	}

	logger.Info("project created", map[string]any{
		"user_id":    userID,
		"project_id": id,
	})
	c.Redirect(http.StatusSeeOther, "/dashboard/projects")
}

func (h *Handler) updateProject(c *gin.Context) {
	userID, _ := owner(c)
	projectID := c.Param("id")

	in, ok := h.bindProject(c, projectID)
	if !ok {
		return
	}

	err := h.store.UpdateProject(c.Request.Context(), userID, projectID, in)
	if errors.Is(err, ErrNotFound) {
		web.NotFound(c)
		return
	}
	if err != nil {
		data := h.projectsData(nil)
		data["Form"] = in
		data["EditingID"] = projectID
		web.Fail(c, http.StatusInternalServerError, "projects.html", data, err)
		return
	}

	c.Redirect(http.StatusSeeOther, "/dashboard/projects")
}

func (h *Handler) deleteProject(c *gin.Context) {
	userID, _ := owner(c)
	projectID := c.Param("id")

	err := h.store.DeleteProject(c.Request.Context(), userID, projectID)
	if errors.Is(err, ErrNotFound) {
		web.NotFound(c)
		return
	}
	if err != nil {
		web.Fail(c, http.StatusInternalServerError, "projects.html", h.projectsData(nil), err)
		return
	}

	logger.Info("project deleted", map[string]any{
		"user_id":    userID,
		"project_id": projectID,
	})
	c.Redirect(http.StatusSeeOther, "/dashboard/projects")
}

func (h *Handler) portfolio(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	profile, err := h.store.GetProfile(ctx, id)
	if errors.Is(err, ErrNotFound) {
		web.NotFound(c)
		return
	}
	if err != nil {
		web.Fail(c, http.StatusInternalServerError, "error.html", gin.H{"Title": "Error"}, err)
		return
	}

	projects, err := h.store.ListProjects(ctx, id)
	if err != nil {
		logger.Error("failed to load portfolio projects", map[string]any{
			"profile_id": id,
			"error":      err,
		})
		projects = nil
	}

	c.HTML(http.StatusOK, "portfolio.html", web.Page(c, gin.H{
		"Title":    profile.DisplayName() + "'s Portfolio",
		"Profile":  profile,
		"Projects": projects,
	}))
}
