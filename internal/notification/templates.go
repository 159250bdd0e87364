package notification

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"time"

	"github.com/shopspring/decimal"
)

const (
	kindLoanConfirmation   = "loan confirmation"
	kindReturnConfirmation = "return confirmation"
	kindOverdueReminder    = "overdue reminder"
	kindSubscriptionExpiry = "subscription expiry notice"
)

var ErrNoRecipient = errors.New("contact has no e-mail address")

type loanConfirmationData struct {
	FirstName string
	LoanRef   string
	DueDate   time.Time
}

type returnConfirmationData struct {
	FirstName string
	LoanRef   string
	Late      bool
}

type overdueReminderData struct {
	FirstName  string
	LoanRef    string
	DaysLate   int
	FeePreview decimal.Decimal
}

type subscriptionExpiryData struct {
	FirstName string
	EndDate   time.Time
}

const layout = `{{define "signature"}}<p>L'équipe de {{library}}</p>{{end}}`

var bodies = map[string]struct {
	subject string
	body    string
}{
	kindLoanConfirmation: {
		subject: "Confirmation de votre emprunt",
		body: `<h1>Confirmation d'emprunt</h1>
<p>Bonjour {{.FirstName}},</p>
<p>Nous confirmons votre emprunt (référence #{{.LoanRef}}).</p>
<p>La date de retour prévue est le <strong>{{date .DueDate}}</strong>.</p>
<p>Merci de votre visite et bonne lecture !</p>
{{template "signature"}}`,
	},
	kindReturnConfirmation: {
		subject: "Confirmation de retour",
		body: `<h1>Confirmation de retour</h1>
<p>Bonjour {{.FirstName}},</p>
<p>Nous confirmons le retour de votre emprunt (référence #{{.LoanRef}}).</p>
{{if .Late}}<p><strong>Note :</strong> Ce document a été rendu avec du retard. Veuillez respecter les délais pour vos prochains emprunts.</p>
{{else}}<p>Merci d'avoir respecté le délai de retour.</p>
{{end}}<p>Au plaisir de vous revoir prochainement !</p>
{{template "signature"}}`,
	},
	kindOverdueReminder: {
		subject: "Rappel : Document en retard",
		body: `<h1>Document en retard</h1>
<p>Bonjour {{.FirstName}},</p>
<p>Le document que vous avez emprunté (référence #{{.LoanRef}}) est en retard de <strong>{{.DaysLate}} jour{{if gt .DaysLate 1}}s{{end}}</strong>.</p>
<p>Merci de le rapporter à la médiathèque dans les plus brefs délais.</p>
<p>Pour rappel, des frais de {{money .FeePreview}}€ s'appliquent pour ce retard ({{money rate}}€ par jour de retard).</p>
{{template "signature"}}`,
	},
	kindSubscriptionExpiry: {
		subject: "Votre abonnement expire bientôt",
		body: `<h1>Expiration d'abonnement</h1>
<p>Bonjour {{.FirstName}},</p>
<p>Votre abonnement à la médiathèque expire le <strong>{{date .EndDate}}</strong>.</p>
<p>Pour continuer à profiter de nos services, pensez à le renouveler lors de votre prochaine visite.</p>
<p>À bientôt !</p>
{{template "signature"}}`,
	},
}

// Renderer turns notice data into e-mail messages
type Renderer struct {
	libraryName string
	templates   map[string]*template.Template
}

// NewRenderer parses every notice template. The daily rate is quoted in
// overdue reminders.
func NewRenderer(libraryName string, dailyRate decimal.Decimal, loc *time.Location) (*Renderer, error) {
	if loc == nil {
		loc = time.UTC
	}

	funcs := template.FuncMap{
		"library": func() string { return libraryName },
		"rate":    func() decimal.Decimal { return dailyRate },
		"money":   func(d decimal.Decimal) string { return d.StringFixed(2) },
		"date":    func(t time.Time) string { return t.In(loc).Format("02/01/2006") },
	}

	r := &Renderer{libraryName: libraryName, templates: make(map[string]*template.Template, len(bodies))}
	for kind, b := range bodies {
		tmpl, err := template.New(kind).Funcs(funcs).Parse(layout)
		if err != nil {
			return nil, fmt.Errorf("parsing layout: %w", err)
		}
		if tmpl, err = tmpl.Parse(b.body); err != nil {
			return nil, fmt.Errorf("parsing %s template: %w", kind, err)
		}
		r.templates[kind] = tmpl
	}

	return r, nil
}

func (r *Renderer) Render(kind, to string, data interface{}) (Message, error) {
	tmpl, ok := r.templates[kind]
	if !ok {
		return Message{}, fmt.Errorf("unknown notice %q", kind)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return Message{}, fmt.Errorf("rendering %s: %w", kind, err)
	}

	return Message{
		To:      to,
		Subject: bodies[kind].subject + " - " + r.libraryName,
		HTML:    buf.String(),
	}, nil
}
