/**
 * @description
 * Driver ("motorista") domain model, creation input and the explicit partial
 * update used by PATCH requests.
 */

package domain

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
)

const (
	maxDriverNameLength  = 255
	maxDriverEmailLength = 255
	maxDriverPhoneLength = 20
)

// Driver maps to the `motoristas` table.
type Driver struct {
	ID        int64     `json:"id"`
	Name      string    `json:"nome"`
	CPF       string    `json:"cpf"`
	Email     string    `json:"email"`
	Phone     *string   `json:"telefone"`
	Active    bool      `json:"ativo"`
	CreatedAt time.Time `json:"criado_em"`
	UpdatedAt time.Time `json:"atualizado_em"`
}

// CreateDriverInput is the payload accepted when registering a driver.
type CreateDriverInput struct {
	Name  string  `json:"nome"`
	CPF   string  `json:"cpf"`
	Email string  `json:"email"`
	Phone *string `json:"telefone"`
}

// Normalize trims every field and strips CPF punctuation.
func (in CreateDriverInput) Normalize() CreateDriverInput {
	out := CreateDriverInput{
		Name:  strings.TrimSpace(in.Name),
		CPF:   NormalizeCPF(in.CPF),
		Email: strings.ToLower(strings.TrimSpace(in.Email)),
	}
	if in.Phone != nil {
		phone := strings.TrimSpace(*in.Phone)
		if phone != "" {
			out.Phone = &phone
		}
	}
	return out
}

// Validate checks a normalised input.
func (in CreateDriverInput) Validate() error {
	if err := validateDriverName(in.Name); err != nil {
		return err
	}
	if !ValidateCPF(in.CPF) {
		return errors.New("invalid CPF")
	}
	if err := validateDriverEmail(in.Email); err != nil {
		return err
	}
	return validateDriverPhone(in.Phone)
}

// DriverPatch lists the fields a PATCH may change. Nil means "leave as is".
type DriverPatch struct {
	Name   *string `json:"nome"`
	Email  *string `json:"email"`
	Phone  *string `json:"telefone"`
	Active *bool   `json:"ativo"`
}

// IsEmpty reports whether the patch changes nothing.
func (p DriverPatch) IsEmpty() bool {
	return p.Name == nil && p.Email == nil && p.Phone == nil && p.Active == nil
}

// Normalize trims the provided string fields.
func (p DriverPatch) Normalize() DriverPatch {
	out := p
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		out.Name = &name
	}
	if p.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*p.Email))
		out.Email = &email
	}
	if p.Phone != nil {
		phone := strings.TrimSpace(*p.Phone)
		out.Phone = &phone
	}
	return out
}

// Validate checks only the fields present in the patch.
func (p DriverPatch) Validate() error {
	if p.Name != nil {
		if err := validateDriverName(*p.Name); err != nil {
			return err
		}
	}
	if p.Email != nil {
		if err := validateDriverEmail(*p.Email); err != nil {
			return err
		}
	}
	return validateDriverPhone(p.Phone)
}

// Apply returns a copy of d with the patch merged in. An empty phone clears it.
func (p DriverPatch) Apply(d Driver) Driver {
	if p.Name != nil {
		d.Name = *p.Name
	}
	if p.Email != nil {
		d.Email = *p.Email
	}
	if p.Phone != nil {
		if *p.Phone == "" {
			d.Phone = nil
		} else {
			phone := *p.Phone
			d.Phone = &phone
		}
	}
	if p.Active != nil {
		d.Active = *p.Active
	}
	return d
}

func validateDriverName(name string) error {
	if name == "" {
		return errors.New("nome is required")
	}
	if len([]rune(name)) > maxDriverNameLength {
		return fmt.Errorf("nome must be at most %d characters", maxDriverNameLength)
	}
	return nil
}

func validateDriverEmail(email string) error {
	if email == "" {
		return errors.New("email is required")
	}
	if len(email) > maxDriverEmailLength {
		return fmt.Errorf("email must be at most %d characters", maxDriverEmailLength)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return errors.New("invalid email")
	}
	return nil
}

func validateDriverPhone(phone *string) error {
	if phone != nil && len(*phone) > maxDriverPhoneLength {
		return fmt.Errorf("telefone must be at most %d characters", maxDriverPhoneLength)
	}
	return nil
}
