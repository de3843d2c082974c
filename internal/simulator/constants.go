package simulator

import "time"

// HTTP status code constants.
const (
	StatusOK       = 200
	StatusCreated  = 201
	StatusAccepted = 202
	StatusConflict = 409
)

// Fleet defaults.
const (
	DefaultSamplesPerBatch = 10
	DefaultRate            = time.Second
	DefaultFirmware        = "sim-1.0.0"
	simulatedIP            = "127.0.0.1"
	macPrefix              = "24:6F:28"
)

// Sample generation ranges, in metres and degrees.
const (
	fieldLength  = 20.0
	fieldWidth   = 10.0
	ceiling      = 4.0
	maxTilt      = 30.0
	fullBattery  = 100.0
	batteryDrain = 0.05
	stepSize     = 0.5
)
