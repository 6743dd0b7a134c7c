package mcpserver

// EditorGuide explains the editing model to MCP clients.
const EditorGuide = `# Casemap Editor Guide

A case asks you to explain one historical outcome. Its mind map holds a fixed
OUTCOME card at the top and cause cards placed on year rows below it, the
latest year first. Links join any two cards.

## Workflow

1. Call ` + "`open_case`" + ` with the case id. It loads the saved map (or creates one
   holding only the outcome) and lists the evidence on offer.
2. Add causes with ` + "`drop_evidence`" + `. A year in parentheses at the end of the
   text, e.g. "Hungarian Border Opening (1989)", places the card on that row.
   Pass ` + "`year`" + ` to override it. Without either the card lands on the middle
   year of the visible range.
3. Link cards with two ` + "`click_node`" + ` calls: the first selects, the second
   links the selected card to the clicked one. Clicking the selected card
   again deselects it. Duplicate links and self links are refused.
4. Move a card with ` + "`drag_node`" + `. It snaps to the year row nearest its centre
   and its year and text follow. The outcome card never moves.
5. ` + "`delete_node`" + ` also removes every link touching the card.
   ` + "`delete_link`" + ` removes one link.
6. ` + "`set_timeline_range`" + ` changes the visible years and lays every cause card
   back onto its row. Years run from 1000 to 9999 and a range spans at most
   500 years. ` + "`retag_year`" + ` moves all cards of one year to another.

Every change is saved in the background. Each tool answers with the current
outline:

` + "```" + `
OUTCOME Berlin Wall Tumbles [outcome]
1990 |
1989 | Hungarian Border Opening (1989) [cause-1] *
1988 |
outside range:
  1985 Gorbachev's Reforms (1985) [cause-2]
links:
  cause-1 -> outcome [l-1]
` + "```" + `

Ids are in brackets. ` + "`*`" + ` marks the selected card.
`
