package vehicles

import "github.com/Sternrassler/pagekit/pkg/optional"

// ViewState is what a vehicle screen renders.
type ViewState struct {
	Loading     bool                    `json:"loading"`
	Failed      bool                    `json:"failed"`
	Error       string                  `json:"error,omitempty"`
	Recommended optional.Value[Vehicle] `json:"recommended"`
	Vehicles    []Vehicle               `json:"vehicles"`
}

// LoadingView is the state while a listing is being fetched.
func LoadingView() ViewState {
	return ViewState{Loading: true, Vehicles: []Vehicle{}}
}

// NewViewState derives the view state from a listing request outcome.
func NewViewState(listing Listing, err error) ViewState {
	if err != nil {
		return ViewState{Failed: true, Error: err.Error(), Vehicles: []Vehicle{}}
	}
	vehicles := listing.Vehicles
	if vehicles == nil {
		vehicles = []Vehicle{}
	}
	return ViewState{Recommended: listing.Recommended, Vehicles: vehicles}
}
