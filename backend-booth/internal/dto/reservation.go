package dto

// SlotRequest names a time slot
type SlotRequest struct {
	SlotLabel string `json:"slot_label" binding:"required"`
}
