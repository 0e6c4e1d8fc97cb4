package notification

type CreateDTO struct {
	Title      string                 `json:"title" validate:"required,max=200"`
	Message    string                 `json:"message" validate:"required,max=2000"`
	Type       Type                   `json:"type" validate:"omitempty,oneof=info warning error success"`
	Link       string                 `json:"link" validate:"max=500"`
	Recipients []int64                `json:"recipients" validate:"required,min=1,dive,gt=0"`
	Metadata   map[string]interface{} `json:"metadata"`
}

type BulkDeleteDTO struct {
	IDs []int64 `json:"ids" validate:"required,min=1,max=500,dive,gt=0"`
}

type ListResponse struct {
	Notifications []*Notification `json:"notifications"`
	Total         int64           `json:"total"`
	Unread        int64           `json:"unread"`
}

type CountResponse struct {
	Count int64 `json:"count"`
}
