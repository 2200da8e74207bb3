package dtos

type JobCreationRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description" binding:"required"`
}

type JobUpdateRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

type FetchRequest struct {
	UserID   uint   `json:"user_id" binding:"required"`
	Provider string `json:"provider" binding:"required"`
	JobTitle string `json:"job_title" binding:"required"`
}

type SendShortlistRequest struct {
	UserID   uint   `json:"user_id" binding:"required"`
	Provider string `json:"provider" binding:"required"`
	JobID    uint   `json:"job_id" binding:"required"`
}

type DeleteManyRequest struct {
	ApplicationIDs []uint `json:"application_ids" binding:"required"`
}
