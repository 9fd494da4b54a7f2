package domain

// orderStatuses фиксирует порядок объявления статусов.
var orderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusPaid,
	OrderStatusCancelled,
	OrderStatusProcessing,
	OrderStatusCompleted,
}

// transitions — направленный граф допустимых переходов.
// Заполняется один раз при инициализации пакета и наружу не отдаётся.
var transitions = buildTransitions(map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusPaid, OrderStatusCancelled, OrderStatusProcessing},
	OrderStatusProcessing: {OrderStatusCompleted, OrderStatusCancelled},
	OrderStatusPaid:       {OrderStatusCompleted, OrderStatusCancelled},
	OrderStatusCompleted:  {},
	OrderStatusCancelled:  {},
})

func buildTransitions(edges map[OrderStatus][]OrderStatus) map[OrderStatus]map[OrderStatus]struct{} {
	graph := make(map[OrderStatus]map[OrderStatus]struct{}, len(edges))
	for from, targets := range edges {
		next := make(map[OrderStatus]struct{}, len(targets))
		for _, to := range targets {
			next[to] = struct{}{}
		}
		graph[from] = next
	}
	return graph
}

// ValidateTransition возвращает ErrInvalidTransition, если ребра from -> to нет в таблице.
func ValidateTransition(from, to OrderStatus) error {
	if !from.CanTransitionTo(to) {
		return NewInvalidTransitionError(from, to)
	}
	return nil
}
