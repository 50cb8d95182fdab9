package dto

// EventDTO websocket 推送帧
type EventDTO struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}
