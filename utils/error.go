package utils

import "errors"

var ErrorRecordNotFound = errors.New("record not found")

var ErrorInvalidDate = errors.New("invalid date, expected YYYY-MM-DD")
