package utils


func GetZero [T any]() T {
	var zero T
	return zero
}
