package validators

type MarkReadRequest struct {
	NotificationIDs []string `json:"notificationIds" validate:"required,min=1,max=100,dive,required,object_id"`
}

type NotificationPayload struct {
	Type      string `json:"type" validate:"required,notification_type"`
	Message   string `json:"message" validate:"required,max=500"`
	RelatedID string `json:"relatedId" validate:"omitempty,object_id"`
}

func ValidateMarkRead(req *MarkReadRequest) ValidationErrors {
	return ValidateStruct(req)
}
