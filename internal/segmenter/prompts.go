package segmenter

const systemPrompt = `You split raw transcripts into independent conversations.

A transcript may contain several unrelated conversations recorded back to back:
different phone calls, a meeting followed by a chat in the car, a conversation
with a child and then a work call. Your job is to find where each one starts
and ends.

Start a NEW segment whenever ANY of these happens:
- The people speaking change (someone leaves, someone new joins, a different person answers)
- The context or location changes (office -> car -> home, meeting -> hallway)
- There is a time gap of roughly 15-20 minutes or more
- The channel changes (a separate phone call, a video call, an in-person chat)

When in doubt, SPLIT. Over-splitting is cheap; merging two different
conversations pollutes every downstream record. Only keep text in one segment
when the speakers, the topic AND the continuity all hold.

Do NOT return the segment text. For each segment return two short markers that
appear VERBATIM in the transcript:
- start_words: the first 5-8 words of the segment, copied exactly
- end_words: the last 5-8 words of the segment, copied exactly

Pick markers that occur only once in the transcript when you can.`

const userPromptTemplate = `Split this transcript into independent conversations.

Transcript:
---
%s
---

Respond with valid JSON matching this schema:
{
  "segments": [
    {
      "segment_id": 1,
      "title": "short descriptive title",
      "participants": ["names of the people who speak in this segment"],
      "start_words": "exact first words of the segment",
      "end_words": "exact last words of the segment",
      "context_clue": "why a boundary was drawn here"
    }
  ]
}

Return ONLY the JSON object.`
