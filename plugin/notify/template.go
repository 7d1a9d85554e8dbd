package notify

import (
	"bytes"
	"text/template"

	"github.com/pkg/errors"
)

type messageTemplate struct {
	subject string
	body    *template.Template
}

var templates = map[Kind]messageTemplate{
	KindWelcome: {
		subject: "Welcome to the School Library",
		body: template.Must(template.New("welcome").Parse(`Dear {{.StudentName}},

Welcome to the school library! Your membership is now active.

- Student ID: {{.StudentNumber}}
- Grade: {{.Grade}}
- Email: {{.Email}}

Happy reading!
School Library Management System
`)),
	},
	KindBorrowConfirmation: {
		subject: "Book Borrowed Successfully",
		body: template.Must(template.New("borrow").Parse(`Dear {{.StudentName}},

You have successfully borrowed a book from the school library.

Book Details:
- Title: {{.BookTitle}}
- Author: {{.Author}}
- Borrow Date: {{.BorrowDate}}
- Due Date: {{.DueDate}}

Please return the book by the due date to avoid fines.

School Library Management System
`)),
	},
	KindReturnConfirmation: {
		subject: "Book Returned Successfully",
		body: template.Must(template.New("return").Parse(`Dear {{.StudentName}},

Thank you for returning your book to the school library.

Book Details:
- Title: {{.BookTitle}}
- Return Date: {{.ReturnDate}}
- Fine Amount: ${{printf "%.2f" .FineAmount}}

{{if gt .FineAmount 0.0}}Please pay your fine at the library desk.{{else}}No fine is due.{{end}}

School Library Management System
`)),
	},
	KindOverdueNotice: {
		subject: "Library Book Overdue Notice",
		body: template.Must(template.New("overdue").Parse(`Dear {{.StudentName}},

This is a friendly reminder that you have an overdue book from the school library.

Book Details:
- Title: {{.BookTitle}}
- Due Date: {{.DueDate}}
- Days Overdue: {{.DaysOverdue}}
- Fine Amount: ${{printf "%.2f" .FineAmount}}

Please return the book as soon as possible to avoid additional fines.

School Library Management System
`)),
	},
	KindGeneral: {
		body: template.Must(template.New("general").Parse(`Dear {{.StudentName}},

{{.Message}}

School Library Management System
`)),
	},
}

// Data holds the fields templates may reference.
type Data struct {
	StudentName   string
	StudentNumber string
	Grade         string
	Email         string
	BookTitle     string
	Author        string
	BorrowDate    string
	DueDate       string
	ReturnDate    string
	DaysOverdue   int
	FineAmount    float64
	Message       string
}

// Render builds the message of the given kind for recipient to.
// subject overrides the template subject when non-empty.
func Render(kind Kind, to, subject string, data Data) (Message, error) {
	tmpl, ok := templates[kind]
	if !ok {
		return Message{}, errors.Errorf("unknown message kind %q", kind)
	}

	var buf bytes.Buffer
	if err := tmpl.body.Execute(&buf, data); err != nil {
		return Message{}, errors.Wrapf(err, "failed to render %s message", kind)
	}
	if subject == "" {
		subject = tmpl.subject
	}
	return Message{To: to, Subject: subject, Body: buf.String(), Kind: kind}, nil
}
