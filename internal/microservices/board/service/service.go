package service

type Service struct {
	Coordinator *Coordinator
	Board       *BoardService
}

func New(coordinator *Coordinator, board *BoardService) *Service {
	return &Service{Coordinator: coordinator, Board: board}
}
