package usecase

// Service groups the application services for wiring.
type Service struct {
	Booking    BookingService
	Payment    PaymentService
	Scheduler  *Scheduler
	Reconciler *Reconciler
}
