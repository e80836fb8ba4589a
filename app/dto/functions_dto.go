package dto

// CreateUserRequest is the body of the user creation function
type CreateUserRequest struct {
	Email      string  `json:"email" validate:"required,email,max=255" example:"new.hire@example.com"`
	Password   string  `json:"password" validate:"required,min=8,max=100,password_strength" example:"SecurePass123!"`
	FirstName  string  `json:"first_name" validate:"required,min=1,max=128" example:"New"`
	LastName   string  `json:"last_name" validate:"required,min=1,max=128" example:"Hire"`
	Phone      *string `json:"phone,omitempty" validate:"omitempty,max=32"`
	Department *string `json:"department,omitempty" validate:"omitempty,max=128"`
	JobTitle   *string `json:"job_title,omitempty" validate:"omitempty,max=128"`
	RoleID     uint    `json:"role_id" validate:"required" example:"3"`
	Status     string  `json:"status" validate:"required,oneof=active inactive pending_approval" example:"active"`
	AvatarURL  *string `json:"avatar_url,omitempty" validate:"omitempty,url,max=1024"`
}

// CreatedUser identifies the created account
type CreatedUser struct {
	ID    uint   `json:"id"`
	Email string `json:"email"`
}

// CreateUserResponse is the body of a successful user creation
type CreateUserResponse struct {
	Success bool        `json:"success"`
	User    CreatedUser `json:"user"`
}

// FunctionErrorResponse is the body of a failed function call
type FunctionErrorResponse struct {
	Error string `json:"error"`
}
