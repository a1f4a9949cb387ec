package member

type Member struct {
	ID       string `json:"id" bson:"id"`
	Username string `json:"username" bson:"username"`
}

type Log struct {
	ID      string `json:"id" bson:"id"`
	Message string `json:"message" bson:"message"`
}
