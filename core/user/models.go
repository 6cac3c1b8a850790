package user

import (
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/fleetops/suivi/core"
	"github.com/fleetops/suivi/core/access"
)

const DefaultPosition = "Non défini"

// Profile holds the HR information attached to a User.
type Profile struct {
	Phone        string     `json:"phone"`
	DepartmentID string     `json:"department_id,omitempty"`
	Position     string     `json:"position"`
	HireDate     *time.Time `json:"hire_date,omitempty"`
}

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	IsActive     bool      `json:"is_active"`
	IsStaff      bool      `json:"is_staff"`
	IsSuperuser  bool      `json:"is_superuser"`
	Groups       []string  `json:"groups"`
	Profile      Profile   `json:"profile"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"date_joined"` // UTC
	UpdatedAt    time.Time `json:"updated_at"`  // UTC
	LastLogin    time.Time `json:"last_login"`  // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

// FullName returns "<last> <first>", or the username when both are empty.
func (u User) FullName() string {
	switch {
	case u.LastName != "" && u.FirstName != "":
		return u.LastName + " " + u.FirstName
	case u.LastName != "":
		return u.LastName
	case u.FirstName != "":
		return u.FirstName
	}
	return u.Username
}

func (u User) InGroup(group string) bool {
	return core.StringInSlice(group, u.Groups)
}

// CanEvaluate reports whether the user is active and member of an evaluator group.
func (u User) CanEvaluate() bool {
	return u.IsActive && access.CanEvaluate(u.Groups)
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	Username        string     `json:"username" validate:"required,min=3,max=150,username"`
	Email           string     `json:"email" validate:"omitempty,email"`
	FirstName       string     `json:"first_name" validate:"max=150"`
	LastName        string     `json:"last_name" validate:"max=150"`
	Password        string     `json:"password" validate:"required"`
	PasswordConfirm string     `json:"password_confirm" validate:"required,eqfield=Password"`
	IsStaff         bool       `json:"is_staff"`
	IsSuperuser     bool       `json:"is_superuser"`
	Groups          []string   `json:"groups" validate:"omitempty,groups"`
	Phone           string     `json:"phone" validate:"omitempty,max=15,phone"`
	DepartmentID    string     `json:"department_id"`
	Position        string     `json:"position" validate:"max=100"`
	HireDate        *time.Time `json:"hire_date"`
}

func (nu *NewUser) Validate(validate *validator.Validate, svc ServiceInterface) error {
	nu.Username = core.CleanString(nu.Username, true /* lower */)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.FirstName = core.CleanString(nu.FirstName)
	nu.LastName = core.CleanString(nu.LastName)
	nu.Phone = core.CleanString(nu.Phone)
	nu.Position = core.CleanString(nu.Position)

	if err := validate.Struct(nu); err != nil {
		return err
	}
	return svc.CheckUniqueness(nu.Username, nu.Email)
}

// UpdateUser defines what information may be provided to modify an existing User.
// Empty strings and nil pointers keep the current value.
type UpdateUser struct {
	Email        string     `json:"email" validate:"omitempty,email"`
	FirstName    string     `json:"first_name" validate:"max=150"`
	LastName     string     `json:"last_name" validate:"max=150"`
	IsActive     *bool      `json:"is_active"`
	IsStaff      *bool      `json:"is_staff"`
	Groups       []string   `json:"groups" validate:"omitempty,groups"`
	Phone        string     `json:"phone" validate:"omitempty,max=15,phone"`
	DepartmentID string     `json:"department_id"`
	Position     string     `json:"position" validate:"max=100"`
	HireDate     *time.Time `json:"hire_date"`
}

func (uu *UpdateUser) Validate(origUsr User, validate *validator.Validate, svc ServiceInterface) error {
	uu.Email = core.CleanString(uu.Email, true /* lower */)
	uu.FirstName = core.CleanString(uu.FirstName)
	uu.LastName = core.CleanString(uu.LastName)
	uu.Phone = core.CleanString(uu.Phone)
	uu.Position = core.CleanString(uu.Position)

	if err := validate.Struct(uu); err != nil {
		return err
	}
	if uu.Email == "" || uu.Email == origUsr.Email {
		return nil
	}
	return svc.CheckUniqueness("", uu.Email, origUsr)
}

// apply merges the set fields of uu into usr.
func (uu UpdateUser) apply(usr *User) {
	if uu.Email != "" {
		usr.Email = uu.Email
	}
	if uu.FirstName != "" {
		usr.FirstName = uu.FirstName
	}
	if uu.LastName != "" {
		usr.LastName = uu.LastName
	}
	if uu.IsActive != nil {
		usr.IsActive = *uu.IsActive
	}
	if uu.IsStaff != nil {
		usr.IsStaff = *uu.IsStaff
	}
	if uu.Groups != nil {
		usr.Groups = uu.Groups
	}
	if uu.Phone != "" {
		usr.Profile.Phone = uu.Phone
	}
	if uu.DepartmentID != "" {
		usr.Profile.DepartmentID = uu.DepartmentID
	}
	if uu.Position != "" {
		usr.Profile.Position = uu.Position
	}
	if uu.HireDate != nil {
		usr.Profile.HireDate = uu.HireDate
	}
}

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp ResetUserPassword) Validate(validate *validator.Validate) error { return validate.Struct(rp) }

type ChangeUserPassword struct {
	OldPassword     string `json:"old_password" validate:"required"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (cp ChangeUserPassword) Validate(validate *validator.Validate) error { return validate.Struct(cp) }

type QueryFilter struct {
	Search   string
	Group    string
	IsActive *bool
	IsStaff  *bool
	// JoinedFrom keeps the users who joined at or after this instant.
	JoinedFrom time.Time
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Group == "" && qf.IsActive == nil && qf.IsStaff == nil && qf.JoinedFrom.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Group = core.CleanString(qf.Group)
}

// GetFilter selects one User. The first non-empty field wins.
type GetFilter struct {
	ID              string
	Username        string
	Email           string
	UsernameOrEmail string
}
