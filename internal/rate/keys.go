package rate

const keyPrefix = "gs:login:"

func loginUserKey(email string) string {
	return keyPrefix + "u:" + email
}

func loginIPKey(ip string) string {
	return keyPrefix + "ip:" + ip
}
