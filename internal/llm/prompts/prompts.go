package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"
)

//go:embed templates/*.txt
var templateFS embed.FS

var (
	studentMessageRegex     = regexp.MustCompile(`(?i)</?\s*student-message\b[^>]*>`)
	systemInstructionsRegex = regexp.MustCompile(`(?i)</?\s*system-instructions\b[^>]*>`)
)

// maxMessageRunes bounds a single chat message forwarded to the model.
const maxMessageRunes = 4000

// DefaultFirstName is used in the welcome message when the report has no readable name.
const DefaultFirstName = "Öğrencim"

// Apology is appended as the model turn when a chat call fails.
const Apology = "😔 Üzgünüm, bir bağlantı hatası oluştu. Lütfen tekrar dene."

// QuickActions are canned questions submitted through the regular chat path.
var QuickActions = []string{
	"📅 Bana özel haftalık çalışma planı yap",
	"📈 YKS sıralama tahminim nedir?",
	"🧪 Fen netlerimi nasıl artırabilirim?",
	"⚠️ En kritik konu eksiklerim neler?",
	"🧠 Matematik boşlarım için strateji ver",
}

var (
	loadOnce        sync.Once
	loadErr         error
	analysisSystem  string
	analysisRequest string
	coachTemplate   *template.Template
	welcomeTemplate *template.Template
)

// CoachData holds template data for the coach system instruction.
type CoachData struct {
	StudentName  string
	AnalysisJSON string
}

// WelcomeData holds template data for the welcome message.
type WelcomeData struct {
	FirstName string
}

// Load parses the prompt templates from fsys. It uses sync.Once so templates are loaded only once;
// passing nil uses the embedded templates.
func Load(fsys fs.FS) error {
	loadOnce.Do(func() {
		if fsys == nil {
			fsys = templateFS
		}

		read := func(name string) (string, error) {
			b, err := fs.ReadFile(fsys, "templates/"+name)
			if err != nil {
				return "", errors.New("failed to read prompt file " + name + ": " + err.Error())
			}
			return string(b), nil
		}

		if analysisSystem, loadErr = read("analysis_system.txt"); loadErr != nil {
			return
		}
		if analysisRequest, loadErr = read("analysis_request.txt"); loadErr != nil {
			return
		}
		analysisRequest = strings.TrimSpace(analysisRequest)

		coach, err := read("coach_system.txt")
		if err != nil {
			loadErr = err
			return
		}
		if coachTemplate, err = template.New("coach").Parse(coach); err != nil {
			loadErr = errors.New("failed to parse prompt template coach_system.txt: " + err.Error())
			return
		}

		welcome, err := read("coach_welcome.txt")
		if err != nil {
			loadErr = err
			return
		}
		if welcomeTemplate, err = template.New("welcome").Parse(welcome); err != nil {
			loadErr = errors.New("failed to parse prompt template coach_welcome.txt: " + err.Error())
		}
	})
	return loadErr
}

func ensureLoaded() error {
	if err := Load(nil); err != nil {
		return fmt.Errorf("templates load failed: %w", err)
	}
	return nil
}

// AnalysisInstruction returns the fixed system instruction of the analysis call.
func AnalysisInstruction() (string, error) {
	if err := ensureLoaded(); err != nil {
		return "", err
	}
	return analysisSystem, nil
}

// AnalysisRequest returns the fixed user prompt sent alongside the document.
func AnalysisRequest() (string, error) {
	if err := ensureLoaded(); err != nil {
		return "", err
	}
	return analysisRequest, nil
}

// BuildCoachInstruction renders the coach system instruction with the analysis embedded as context.
func BuildCoachInstruction(studentName, analysisJSON string) (string, error) {
	if err := ensureLoaded(); err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := coachTemplate.Execute(&buf, CoachData{StudentName: studentName, AnalysisJSON: analysisJSON}); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// BuildWelcome renders the first model message of a transcript.
func BuildWelcome(fullName string) (string, error) {
	if err := ensureLoaded(); err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := welcomeTemplate.Execute(&buf, WelcomeData{FirstName: FirstName(fullName)}); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

// FirstName returns the first word of a full name, or DefaultFirstName.
func FirstName(fullName string) string {
	fields := strings.Fields(fullName)
	if len(fields) == 0 {
		return DefaultFirstName
	}
	return fields[0]
}

// WrapStudentMessage sanitizes a user message and wraps it so the model can tell it apart
// from instructions.
func WrapStudentMessage(msg string) string {
	return "<student-message>\n" + SanitizeMessage(msg) + "\n</student-message>"
}

// SanitizeMessage strips delimiter tags and truncates overly long messages.
func SanitizeMessage(msg string) string {
	msg = studentMessageRegex.ReplaceAllString(msg, "")
	msg = systemInstructionsRegex.ReplaceAllString(msg, "")
	msg = strings.TrimSpace(msg)

	if utf8.RuneCountInString(msg) > maxMessageRunes {
		runes := []rune(msg)
		msg = string(runes[:maxMessageRunes]) + "\n\n[Mesaj uzunluk nedeniyle kısaltıldı]"
	}
	return msg
}
