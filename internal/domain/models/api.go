package models

// HTTP request bodies and query strings. Dates are YYYY-MM-DD; a zero
// RoomTypeID means every room type.

type KPIRequest struct {
	StartDate  string `query:"start_date" json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate    string `query:"end_date" json:"end_date" validate:"required,datetime=2006-01-02"`
	RoomTypeID int64  `query:"room_type_id" json:"room_type_id" validate:"gte=0"`
}

type ForecastRequest struct {
	StartDate  string `query:"start_date" json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate    string `query:"end_date" json:"end_date" validate:"required,datetime=2006-01-02"`
	Horizon    int    `query:"horizon" json:"horizon" default:"90" validate:"gte=1,lte=730"`
	RoomTypeID int64  `query:"room_type_id" json:"room_type_id" validate:"gte=0"`
}

type PricingRequest struct {
	Horizon    int   `query:"horizon" json:"horizon" default:"90" validate:"gte=1,lte=730"`
	RoomTypeID int64 `query:"room_type_id" json:"room_type_id" validate:"gte=0"`
}

type ExportRequest struct {
	StartDate  string `query:"start_date" json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate    string `query:"end_date" json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	RoomTypeID int64  `query:"room_type_id" json:"room_type_id" validate:"gte=0"`
	Channel    string `query:"channel" json:"channel"`
}

type RunRequest struct {
	StartDate   string `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate     string `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	Horizon     int    `json:"horizon" validate:"gte=0,lte=730"`
	RoomTypeID  int64  `json:"room_type_id" validate:"gte=0"`
	Export      bool   `json:"export"`
	ExportStart string `json:"export_start" validate:"omitempty,datetime=2006-01-02"`
	ExportEnd   string `json:"export_end" validate:"omitempty,datetime=2006-01-02"`
	Channel     string `json:"channel"`
	Async       bool   `json:"async"`
}

type RecommendationsRequest struct {
	StartDate  string `query:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate    string `query:"end_date" validate:"omitempty,datetime=2006-01-02"`
	RoomTypeID int64  `query:"room_type_id" validate:"gte=0"`
	Channel    string `query:"channel"`
	State      string `query:"state" validate:"omitempty,oneof=Pending Approved Exported"`
}

type ApproveRequest struct {
	ID           int64    `param:"id" validate:"required,gt=0"`
	ApprovedRate *float64 `json:"approved_rate" validate:"omitempty,gt=0"`
}

type MarkExportedRequest struct {
	IDs []int64 `json:"ids" validate:"required,min=1,dive,gt=0"`
}
