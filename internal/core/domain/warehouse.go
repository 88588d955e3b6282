package domain

type Warehouse struct {
	ID       string
	Capacity int // total units storable, always > 0
}
