// Package intake holds the upload allow-list: which purposes exist, what
// MIME types and sizes each accepts, and how stored files are named.
package intake

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/hirewise/api/internal/model"
)

type Purpose string

const (
	PurposeResume   Purpose = "resume"
	PurposeDocument Purpose = "document"
	PurposeImage    Purpose = "image"
	PurposeVideo    Purpose = "video"
)

const (
	VideoProfile   = "profile"
	VideoIntro     = "intro"
	VideoInterview = "interview"
)

const mb = 1024 * 1024

const (
	mimePDF       = "application/pdf"
	mimeDOC       = "application/msword"
	mimeDOCX      = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeText      = "text/plain"
	mimeJPEG      = "image/jpeg"
	mimePNG       = "image/png"
	mimeWebP      = "image/webp"
	mimeGIF       = "image/gif"
	mimeMP4       = "video/mp4"
	mimeWebM      = "video/webm"
	mimeQuickTime = "video/quicktime"
)

// extensions lists known extensions per MIME type; the first one is canonical.
var extensions = map[string][]string{
	mimePDF:       {".pdf"},
	mimeDOC:       {".doc"},
	mimeDOCX:      {".docx"},
	mimeText:      {".txt", ".text"},
	mimeJPEG:      {".jpg", ".jpeg"},
	mimePNG:       {".png"},
	mimeWebP:      {".webp"},
	mimeGIF:       {".gif"},
	mimeMP4:       {".mp4", ".m4v"},
	mimeWebM:      {".webm"},
	mimeQuickTime: {".mov", ".qt"},
}

var (
	documentTypes = []string{mimePDF, mimeDOC, mimeDOCX}
	imageTypes    = []string{mimeJPEG, mimePNG, mimeWebP, mimeGIF}
	videoTypes    = []string{mimeMP4, mimeWebM, mimeQuickTime}

	// sniffed types accepted for each family; ancestors count too, so docx
	// detected only as a zip container still passes
	documentSniff = []string{mimePDF, mimeDOC, "application/x-ole-storage", mimeDOCX, "application/zip"}
	imageSniff    = imageTypes
	videoSniff    = []string{mimeMP4, mimeWebM, mimeQuickTime, "video/x-m4v", "video/x-matroska"}
)

// Limits are size ceilings in bytes.
type Limits struct {
	Document       int64
	Image          int64
	VideoProfile   int64
	VideoIntro     int64
	VideoInterview int64
}

func DefaultLimits() Limits {
	return Limits{
		Document:       5 * mb,
		Image:          5 * mb,
		VideoProfile:   10 * mb,
		VideoIntro:     100 * mb,
		VideoInterview: 500 * mb,
	}
}

// Rule is the allow-list entry for one purpose and sub-purpose.
type Rule struct {
	Purpose    Purpose
	SubPurpose string
	MaxSize    int64
	Types      []string
	JobType    model.JobType // empty when the upload needs no AI step
	sniff      []string
}

type Rules struct {
	byKey map[string]Rule
}

func NewRules(l Limits) *Rules {
	rules := []Rule{
		{Purpose: PurposeResume, MaxSize: l.Document, Types: documentTypes, JobType: model.JobTypeResume, sniff: documentSniff},
		{Purpose: PurposeDocument, MaxSize: l.Document, Types: append(append([]string{}, documentTypes...), mimeText), JobType: model.JobTypeEmbedding, sniff: append(append([]string{}, documentSniff...), mimeText)},
		{Purpose: PurposeImage, MaxSize: l.Image, Types: imageTypes, sniff: imageSniff},
		{Purpose: PurposeVideo, SubPurpose: VideoProfile, MaxSize: l.VideoProfile, Types: videoTypes, JobType: model.JobTypeVideoAnalysis, sniff: videoSniff},
		{Purpose: PurposeVideo, SubPurpose: VideoIntro, MaxSize: l.VideoIntro, Types: videoTypes, JobType: model.JobTypeVideoAnalysis, sniff: videoSniff},
		{Purpose: PurposeVideo, SubPurpose: VideoInterview, MaxSize: l.VideoInterview, Types: videoTypes, JobType: model.JobTypeVideoAnalysis, sniff: videoSniff},
	}
	r := &Rules{byKey: make(map[string]Rule, len(rules))}
	for _, rule := range rules {
		r.byKey[ruleKey(rule.Purpose, rule.SubPurpose)] = rule
	}
	return r
}

func ruleKey(p Purpose, sub string) string {
	return string(p) + "/" + sub
}

// Lookup finds the rule for a purpose. Video requires a sub-purpose; the
// others ignore it.
func (r *Rules) Lookup(purpose, subPurpose string) (Rule, error) {
	p := Purpose(strings.ToLower(strings.TrimSpace(purpose)))
	sub := ""
	if p == PurposeVideo {
		sub = strings.ToLower(strings.TrimSpace(subPurpose))
	}
	rule, ok := r.byKey[ruleKey(p, sub)]
	if !ok {
		if p == PurposeVideo {
			return Rule{}, invalidPurpose("subPurpose must be one of profile, intro, interview", subPurpose)
		}
		return Rule{}, invalidPurpose("purpose must be one of resume, document, image, video", purpose)
	}
	return rule, nil
}

// Validate checks presence, size and declared type, in that order.
func (r Rule) Validate(present bool, size int64, declared string) error {
	if !present {
		return &ValidationError{Code: CodeMissingFile, Message: "file is required"}
	}
	if size > r.MaxSize {
		return &ValidationError{
			Code:    CodeFileTooLarge,
			Message: fmt.Sprintf("file exceeds the %d MB limit for %s", r.MaxSize/mb, r.label()),
			Details: map[string]interface{}{"maxSize": r.MaxSize, "fileSize": size},
		}
	}
	if !r.Allows(declared) {
		return &ValidationError{
			Code:    CodeInvalidType,
			Message: fmt.Sprintf("content type not allowed for %s", r.label()),
			Details: map[string]interface{}{"contentType": declared, "allowed": r.Types},
		}
	}
	return nil
}

// Allows reports whether the declared MIME type is on the allow-list.
func (r Rule) Allows(declared string) bool {
	mt := NormalizeMIME(declared)
	for _, t := range r.Types {
		if t == mt {
			return true
		}
	}
	return false
}

// CheckContent sniffs the bytes and requires the detected type (or one of its
// ancestors) to belong to the rule's family.
func (r Rule) CheckContent(data []byte) error {
	detected := mimetype.Detect(data)
	for m := detected; m != nil; m = m.Parent() {
		for _, ok := range r.sniff {
			if m.Is(ok) {
				return nil
			}
		}
	}
	return &ValidationError{
		Code:    CodeInvalidType,
		Message: "file content does not match an allowed type",
		Details: map[string]interface{}{"detected": detected.String()},
	}
}

func (r Rule) label() string {
	if r.SubPurpose != "" {
		return string(r.Purpose) + " " + r.SubPurpose
	}
	return string(r.Purpose)
}

// NormalizeMIME strips parameters and lower-cases a content type.
func NormalizeMIME(s string) string {
	mt, _, err := mime.ParseMediaType(s)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(s))
	}
	if mt == "image/jpg" {
		return mimeJPEG
	}
	return mt
}

// StoredName returns uuid + extension. The client's extension is kept only
// when it is known for the MIME type.
func StoredName(clientName, mimeType string) string {
	return uuid.NewString() + Extension(clientName, mimeType)
}

func Extension(clientName, mimeType string) string {
	known := extensions[NormalizeMIME(mimeType)]
	ext := strings.ToLower(filepath.Ext(clientName))
	for _, k := range known {
		if k == ext {
			return ext
		}
	}
	if len(known) > 0 {
		return known[0]
	}
	return ""
}

// Scrub zeroes a buffer holding uploaded bytes.
func Scrub(b []byte) {
	clear(b)
}
