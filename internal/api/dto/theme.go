package dto

// ThemeDTO 主题
type ThemeDTO struct {
	Theme string `json:"theme" validate:"required,oneof=light dark"`
}
