// Package branding holds the product name shown to humans and assistants.
package branding

// AppName is the product name.
const AppName = "Pledgebank"
