package server

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/KaramelBytes/rawready/internal/analysis"
	"github.com/KaramelBytes/rawready/internal/canon"
	"github.com/KaramelBytes/rawready/internal/clean"
	"github.com/KaramelBytes/rawready/internal/dataset"
	"github.com/KaramelBytes/rawready/internal/utils"
)

const mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// statusError carries the HTTP status a handler error should map to.
type statusError struct {
	status int
	err    error
}

func (e *statusError) Error() string { return e.err.Error() }
func (e *statusError) Unwrap() error { return e.err }

func badRequest(err error) error { return &statusError{status: http.StatusBadRequest, err: err} }

func errTooLarge(n int64) error { return fmt.Errorf("upload exceeds %d bytes", n) }

func (s *Server) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	var se *statusError
	var mbe *http.MaxBytesError
	switch {
	case errors.As(err, &mbe):
		status = http.StatusRequestEntityTooLarge
		err = errTooLarge(mbe.Limit)
	case errors.As(err, &se):
		status = se.status
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func wantsJSON(c *gin.Context) bool {
	return strings.Contains(c.GetHeader("Accept"), gin.MIMEJSON)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "audit": s.audit != nil})
}

// readUpload decodes the multipart "file" field into a table named after the
// uploaded file.
func (s *Server) readUpload(c *gin.Context) (*dataset.Table, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return nil, err
		}
		return nil, badRequest(fmt.Errorf("missing multipart field \"file\": %w", err))
	}
	format, err := dataset.FormatOf(fh.Filename)
	if err != nil {
		return nil, badRequest(err)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	t, err := dataset.Read(f, format, dataset.ReadOptions{Delimiter: s.opt.Delimiter, Sheet: c.PostForm("sheet")})
	if err != nil {
		return nil, badRequest(fmt.Errorf("read %s: %w", fh.Filename, err))
	}
	t.Name = filepath.Base(fh.Filename)
	return t, nil
}

// cleanOptions overlays the request's form fields on the server defaults.
func (s *Server) cleanOptions(c *gin.Context) (clean.Options, error) {
	opt := s.opt.Clean
	if v, ok := c.GetPostForm("fill"); ok {
		m, err := clean.ParseFillMethod(v)
		if err != nil {
			return opt, badRequest(err)
		}
		opt.FillMethod = m
	}
	flags := []struct {
		field string
		dst   *bool
	}{
		{"dedupe", &opt.DropDuplicates},
		{"standardize_columns", &opt.StandardizeColumns},
		{"normalize_text", &opt.NormalizeText},
		{"fix_dates", &opt.FixDates},
		{"validate_emails", &opt.ValidateEmails},
		{"fuzzy", &opt.Fuzzy},
	}
	all, err := formBool(c, "all")
	if err != nil {
		return opt, err
	}
	for _, f := range flags {
		v, err := formBool(c, f.field)
		if err != nil {
			return opt, err
		}
		*f.dst = *f.dst || v || all
	}
	if v, ok := c.GetPostForm("fuzzy_threshold"); ok && v != "" {
		th, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return opt, badRequest(fmt.Errorf("fuzzy_threshold: %w", err))
		}
		opt.FuzzyThreshold = th
	}
	if v, ok := c.GetPostForm("fuzzy_fold"); ok && v != "" {
		m, err := canon.ParseFoldMode(v)
		if err != nil {
			return opt, badRequest(err)
		}
		opt.FuzzyFold = m
	}
	if err := opt.Validate(); err != nil {
		return opt, badRequest(err)
	}
	return opt, nil
}

func formBool(c *gin.Context, field string) (bool, error) {
	v, ok := c.GetPostForm(field)
	if !ok || v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, badRequest(fmt.Errorf("%s: %w", field, err))
	}
	return b, nil
}

func (s *Server) clean(c *gin.Context) {
	t, err := s.readUpload(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	opt, err := s.cleanOptions(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	format := dataset.FormatCSV
	switch v := strings.ToLower(c.DefaultPostForm("format", "csv")); v {
	case "csv":
	case "xlsx":
		format = dataset.FormatXLSX
	default:
		s.fail(c, badRequest(fmt.Errorf("format %q (want csv or xlsx)", v)))
		return
	}

	ctx := c.Request.Context()
	log := s.log.With(zap.String("request_id", requestIDFrom(c)))
	res, err := clean.Run(ctx, t, opt, log)
	if err != nil {
		s.fail(c, err)
		return
	}
	if s.audit != nil {
		if err := s.audit.RecordResult(ctx, t.Name, res); err != nil {
			log.Warn("audit record failed", zap.String("run_id", res.RunID), zap.Error(err))
		}
	}

	delta := analysis.Compare(res.Before, res.After)
	c.Header("X-Run-ID", res.RunID)
	c.Header("X-Rows-Before", strconv.Itoa(res.Before.Rows))
	c.Header("X-Rows-After", strconv.Itoa(res.After.Rows))
	c.Header("X-Nulls-Fixed", strconv.Itoa(delta.NullsFixed))
	c.Header("X-Duplicates-Removed", strconv.Itoa(delta.DuplicatesRemoved))

	if wantsJSON(c) {
		c.JSON(http.StatusOK, analysis.Summarize(res))
		return
	}

	var buf bytes.Buffer
	if err := dataset.Write(&buf, res.Table, format, s.opt.Delimiter); err != nil {
		s.fail(c, err)
		return
	}
	contentType := "text/csv; charset=utf-8"
	if format == dataset.FormatXLSX {
		contentType = mimeXLSX
	}
	name := utils.CleanedName("", "."+string(format))
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, contentType, buf.Bytes())
}

type canonRequest struct {
	Values    []string `json:"values" binding:"required"`
	Threshold *float64 `json:"threshold"`
	Fold      string   `json:"fold"`
}

type canonResponse struct {
	Mapping    canon.Mapping       `json:"mapping"`
	Groups     map[string][]string `json:"groups"`
	Threshold  float64             `json:"threshold"`
	Fold       canon.FoldMode      `json:"fold"`
	Canonicals int                 `json:"canonicals"`
}

func (s *Server) canonicalize(c *gin.Context) {
	var req canonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, badRequest(err))
		return
	}
	if len(req.Values) > s.opt.MaxValues {
		s.fail(c, &statusError{
			status: http.StatusRequestEntityTooLarge,
			err:    fmt.Errorf("%d values exceed the limit of %d", len(req.Values), s.opt.MaxValues),
		})
		return
	}
	threshold := s.opt.Clean.FuzzyThreshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}
	fold := s.opt.Clean.FuzzyFold
	if req.Fold != "" {
		var err error
		if fold, err = canon.ParseFoldMode(req.Fold); err != nil {
			s.fail(c, badRequest(err))
			return
		}
	}
	if fold == "" {
		fold = canon.FoldNone
	}
	cz, err := canon.New(canon.Options{Threshold: threshold, Fold: fold})
	if err != nil {
		s.fail(c, badRequest(err))
		return
	}
	m := cz.Canonicalize(req.Values)
	if m == nil {
		m = canon.Mapping{}
	}
	c.JSON(http.StatusOK, canonResponse{
		Mapping:    m,
		Groups:     m.Groups(),
		Threshold:  threshold,
		Fold:       fold,
		Canonicals: len(m.Canonicals()),
	})
}

func (s *Server) profile(c *gin.Context) {
	t, err := s.readUpload(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	opt := s.opt.Profile
	if v := c.PostForm("group_by"); v != "" {
		opt.GroupBy = nil
		for _, g := range strings.Split(v, ",") {
			if g = strings.TrimSpace(g); g != "" {
				opt.GroupBy = append(opt.GroupBy, g)
			}
		}
	}
	if v := c.PostForm("sample_rows"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.fail(c, badRequest(fmt.Errorf("sample_rows must be a non-negative integer, got %q", v)))
			return
		}
		opt.SampleRows = n
	}

	rep := analysis.Profile(t, opt)
	if wantsJSON(c) {
		c.JSON(http.StatusOK, rep)
		return
	}
	c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(rep.Markdown()))
}
