package service

import "fmt"

// FetchError reports that the appointment store could not be read
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch appointments: %v", e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// DeliveryError reports that the mail transport did not accept a message
type DeliveryError struct {
	Recipient string
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("failed to deliver email to %s: %v", e.Recipient, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}
