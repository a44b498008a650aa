package bingo

// MarkGrid projects a participant's marked set onto the card as a 5x5
// boolean grid. The free center is always true. Only explicitly marked
// numbers count; a drawn number the player never marked stays false.
func MarkGrid(card *Card, marked map[int]bool) [GridSize][GridSize]bool {
	var grid [GridSize][GridSize]bool
	for r := 0; r < GridSize; r++ {
		for c := 0; c < GridSize; c++ {
			n := card.Grid[r][c]
			if n == FreeCell {
				grid[r][c] = true
				continue
			}
			grid[r][c] = marked[n]
		}
	}
	return grid
}

// HasBingo reports whether the mark grid completes a qualifying pattern:
// any full row, any full column, or either diagonal.
func HasBingo(grid [GridSize][GridSize]bool) bool {
	for i := 0; i < GridSize; i++ {
		rowComplete, colComplete := true, true
		for j := 0; j < GridSize; j++ {
			if !grid[i][j] {
				rowComplete = false
			}
			if !grid[j][i] {
				colComplete = false
			}
		}
		if rowComplete || colComplete {
			return true
		}
	}

	diag1, diag2 := true, true
	for i := 0; i < GridSize; i++ {
		if !grid[i][i] {
			diag1 = false
		}
		if !grid[i][GridSize-1-i] {
			diag2 = false
		}
	}
	return diag1 || diag2
}
