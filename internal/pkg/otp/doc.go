// Package otp generates short-lived numeric one-time codes.
package otp
